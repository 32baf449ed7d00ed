package main

import (
	"siody.home/shmtimer/internal/app/timerd"
	"siody.home/shmtimer/internal/appmain"
)

func main() {
	appmain.RunApplication("timerd", timerd.Bind)
}
