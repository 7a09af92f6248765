package main

import "commentboard/internal/app"

// @title        Comment board API
// @version      1.0
// @description  Email-confirmed signup, login and comment posting.
// @BasePath     /
func main() {
	app.Run()
}
