package pipeline

// Prompt templates sent to the chat model. The answer prompt gets the
// retrieved context first and the literal user question second; history is
// folded into the retrieval query only.
const (
	summaryPromptFmt = "Summarize the following document in 200-300 words: %s"

	entityPromptFmt = "Extract key entities (persons, organizations, dates, locations) from this text: %s\n" +
		`Format as JSON list: [{"type": "person", "text": "Name", "count": 1}, ...]`

	answerPromptFmt = `Use the following pieces of context to answer the question.
If you don't know the answer, say you don't know.

%s

Question: %s
Answer:`

	historyQuestionFmt = "Previous conversation:\n%s\n\nCurrent question: %s"
)

// Placeholder output used when no usable OpenAI credentials are configured.
const (
	DummySummary = "This is a dummy summary because no valid OpenAI API key is provided."

	DummyEntityType = "Dummy Type"
	DummyEntityText = "Placeholder Entity"

	dummyAnswerFmt = "Dummy reply to '%s': This would be a real answer if a valid OpenAI API key was provided."
)
