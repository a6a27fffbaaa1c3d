package llm

import "strings"

// DefaultInstruction is used when the caller provides no instruction.
const DefaultInstruction = "Please process the following transcript and provide a helpful response:"

const promptDirective = "Please provide a clear and helpful response based on the instruction and transcript above."

// BuildPrompt assembles the completion prompt from an instruction and a
// transcript. A blank transcript is an error; a blank instruction falls
// back to DefaultInstruction. The output is deterministic: same inputs,
// same prompt.
func BuildPrompt(instruction, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyInput
	}
	final := strings.TrimSpace(instruction)
	if final == "" {
		final = DefaultInstruction
	}
	return final + "\n\nTranscript: \"" + transcript + "\"\n\n" + promptDirective, nil
}

// BuildPromptWithContext is BuildPrompt with an optional extra context
// block between the transcript and the trailing directive.
func BuildPromptWithContext(instruction, transcript, context string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyInput
	}
	final := strings.TrimSpace(instruction)
	if final == "" {
		final = DefaultInstruction
	}
	prompt := final + "\n\nTranscript: \"" + transcript + "\""
	if c := strings.TrimSpace(context); c != "" {
		prompt += "\n\nAdditional Context: " + c
	}
	return prompt + "\n\n" + promptDirective, nil
}
