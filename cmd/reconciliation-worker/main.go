package main

import (
	"github.com/muzima/registration-worker/worker"
)

func main() {
	worker.New().Run()
}
