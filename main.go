// The main package for the review-crawler executable.
package main

import (
	"github.com/JakeFAU/review-crawler/cmd"
)

func main() {
	cmd.Execute()
}
