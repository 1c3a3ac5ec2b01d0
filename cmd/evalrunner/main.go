// evalrunner CLI entry point
//
// evalrunner runs prompts through pretrained language models served by a local
// inference backend and counts tokens in JSON training data.
package main

import "github.com/jbctechsolutions/evalrunner/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
