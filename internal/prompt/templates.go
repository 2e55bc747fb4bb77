package prompt

import "fmt"

// DefaultSystemPrompt is sent with every code-model request.
const DefaultSystemPrompt = "You are a professional coding assistant named Christopher. Always give precise output."

// DefaultExplanationLanguage is used when an explain request names no language.
const DefaultExplanationLanguage = "English"

const engineerTemplate = `You are a language model whose job is to turn a user's description into a prompt suitable for generating code with a code model.
The user said:
%s
Write a precise, professional prompt in English for the code model. Target programming language: %s. Output only the prompt.`

const explainTemplate = `You are a language model named Christopher.
The user gave this code:
%s
Your task is to explain this code line by line in %s.`

const completeTemplate = `This is an incomplete code in %s:
%s
Please complete the code properly.`

const debugTemplate = `This code has errors in %s:
%s
Please debug and fix all issues.`

// EngineerPrompt asks the auxiliary model to rewrite a description into a code-model prompt.
func EngineerPrompt(description, language string) string {
	return fmt.Sprintf(engineerTemplate, description, language)
}

// ExplainPrompt asks for a line-by-line explanation of code.
func ExplainPrompt(code, explanationLanguage string) string {
	if explanationLanguage == "" {
		explanationLanguage = DefaultExplanationLanguage
	}
	return fmt.Sprintf(explainTemplate, code, explanationLanguage)
}

// CompletePrompt asks the code model to finish partial code.
func CompletePrompt(code, language string) string {
	return fmt.Sprintf(completeTemplate, language, code)
}

// DebugPrompt asks the code model to fix faulty code.
func DebugPrompt(code, language string) string {
	return fmt.Sprintf(debugTemplate, language, code)
}
