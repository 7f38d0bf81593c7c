package core

import (
	"fmt"
	"strings"

	"github.com/physical-ai/textbook-assistant/internal/retrieval"
)

const systemPromptEN = `You are an AI teaching assistant for a Physical AI & Humanoid Robotics textbook. Your role is to:

1. Answer questions clearly and accurately using the provided context
2. Reference specific chapters and sections when relevant
3. Provide code examples when helpful
4. Explain complex concepts in simple terms
5. Encourage hands-on learning with practical suggestions
6. Admit when you don't know something

Context provided contains relevant excerpts from the textbook. Use this context to inform your answers, but also draw on your general robotics knowledge when appropriate.

Always cite your sources using the format: [Chapter Name - Section] when referencing the context.`

const systemPromptUR = `آپ فزیکل AI اور ہیومنائیڈ روبوٹکس کی درسی کتاب کے لیے AI تدریسی معاون ہیں۔ آپ کا کردار یہ ہے:

1. فراہم کردہ سیاق و سباق کا استعمال کرتے ہوئے سوالات کے واضح اور درست جوابات دینا
2. متعلقہ ابواب اور حصوں کا حوالہ دینا
3. مفید ہونے پر کوڈ کی مثالیں فراہم کرنا
4. پیچیدہ تصورات کو آسان الفاظ میں بیان کرنا
5. عملی تجاویز کے ساتھ ہاتھ سے سیکھنے کی حوصلہ افزائی کرنا
6. جب آپ کچھ نہیں جانتے تو تسلیم کرنا

فراہم کردہ سیاق و سباق میں درسی کتاب سے متعلقہ اقتباسات ہیں۔ اپنے جوابات کو مطلع کرنے کے لیے اس سیاق و سباق کا استعمال کریں۔

ہمیشہ اپنے ذرائع کا حوالہ دیں: [باب کا نام - سیکشن]`

const titleSystemInstruction = "You are a helpful assistant that generates concise titles for chat conversations. " +
	"The title should be 3-5 words maximum. Just return the title itself, nothing else."

// SystemPrompt returns the teaching-assistant instruction for a language.
func SystemPrompt(language retrieval.Language) string {
	if language == retrieval.LangUrdu {
		return systemPromptUR
	}
	return systemPromptEN
}

// FormatContext renders the retrieved chunks as one block for the prompt,
// labelling each source so the model can cite it back.
func FormatContext(chunks []retrieval.ContextChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s - %s]\n%s\n",
			i+1, chunk.Chapter, chunk.Section, chunk.Content))
	}
	return strings.Join(blocks, "\n---\n\n")
}

func contextPrompt(chunks []retrieval.ContextChunk, userMessage string) string {
	return fmt.Sprintf("Here is relevant context from the textbook:\n\n%s\n\nUser question: %s",
		FormatContext(chunks), userMessage)
}
