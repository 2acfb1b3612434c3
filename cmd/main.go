package main

import "github.com/todoflow-labs/todo-api/internal/app"

func main() {
	app.Run()
}
