package chat

import "strings"

// promptTemplate asks the model to answer from the supplied context and to
// mark each citation inline with citation.Marker.
const promptTemplate = `Answer the question based on these documents:

{context}

Question: {question}

Instructions:
- Whenever you reference a document, include a line exactly like this:
[__CITATIONS__]{"doc_id": "...", "filename": "...", "snippet": "..."}
for the document(s) you used to produce the answer. Do NOT invent filenames, IDs, or any content outside of these documents.
- Do NOT reference any document not included above.
- Remove all [__CITATIONS__] lines from the answer text. They should only be emitted as separate citation messages.
- Answer concisely and clearly, and include citations only when necessary.`

// BuildPrompt renders the single prompt sent to the model.
func BuildPrompt(docContext, question string) string {
	return strings.NewReplacer(
		"{context}", docContext,
		"{question}", question,
	).Replace(promptTemplate)
}
