package dialogue

import "fmt"

// directPrompt asks for a display-sized answer to the user text.
func directPrompt(cols, rows int, userText string) string {
	return fmt.Sprintf("Reply in ONE short sentence for a %dx%d LCD (max ~%d characters). "+
		"No newlines. Answer the user.\nUser: %s", cols, rows, cols*rows, userText)
}

// rewritePrompt asks for the tool-informed answer to be squeezed onto the display.
func rewritePrompt(cols, rows int, final string) string {
	return fmt.Sprintf("Rewrite the following as ONE short sentence for a %dx%d LCD "+
		"(max ~%d characters). No newlines.\nText: %s", cols, rows, cols*rows, final)
}
