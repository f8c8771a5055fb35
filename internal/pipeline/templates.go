package pipeline

import (
	"fmt"
	"strings"
)

// Template stages set the core instruction from the task request. One
// template per generation task; each leans on the material content staying
// in the excerpt stages so the length guard never cuts the instruction.

// ChatTemplate frames an escalated conversation turn.
func ChatTemplate() Stage {
	return func(st *State) {
		st.Instruction = fmt.Sprintf(
			"You are a study coach. Answer the student's request clearly and concisely, "+
				"using only the conversation and material provided.\n\nStudent: %s",
			st.Req.Input)
	}
}

// QuestionTemplate asks for quiz questions grounded strictly in the material.
func QuestionTemplate(count int, questionType, difficulty string, topics []string) Stage {
	topicStr := "the material"
	if len(topics) > 0 {
		topicStr = strings.Join(topics, ", ")
	}
	return func(st *State) {
		st.Instruction = fmt.Sprintf(
			"Generate %d %s %s quiz questions about %s, STRICTLY based on the study material below.\n"+
				"Only use information explicitly stated in the material; do not introduce external facts.\n"+
				"For multiple-choice questions provide 4 options with exactly one correct answer "+
				"(correct_answer is the 0-based index). For short-answer questions correct_answer is a string.\n"+
				"Include the specific topic each question relates to.",
			count, difficulty, questionType, topicStr)
	}
}

// FlashcardTemplate asks for flashcards grounded strictly in the material.
func FlashcardTemplate(count int, topics []string) Stage {
	topicStr := "the material"
	if len(topics) > 0 {
		topicStr = strings.Join(topics, ", ")
	}
	return func(st *State) {
		st.Instruction = fmt.Sprintf(
			"Create %d flashcards about %s, STRICTLY based on the study material below.\n"+
				"Front: a question about a specific term, concept, or fact from the material.\n"+
				"Back: a complete explanation using only information in the material, never truncated.\n"+
				"Topic: the specific subject area from the material, never a placeholder.",
			count, topicStr)
	}
}

// SummaryTemplate asks for bullet-point summaries of the material.
func SummaryTemplate(maxPoints int) Stage {
	return func(st *State) {
		st.Instruction = fmt.Sprintf(
			"Summarize the study material below into %d or fewer clear, concise bullet points.\n"+
				"Only use information explicitly stated in the material. Each point must be "+
				"factually present in the text and 100 characters or less.",
			maxPoints)
	}
}

// RevisionTemplate asks for an improved replacement of an existing item,
// guided by accumulated user feedback.
func RevisionTemplate(itemPayload string, feedback []string) Stage {
	return func(st *State) {
		st.Instruction = fmt.Sprintf(
			"Improve this study item based on user feedback and the study material below.\n\n"+
				"Current item:\n%s\n\nUser feedback:\n%s\n\n"+
				"Keep the same item kind but make it clearer, more precise, and better aligned "+
				"with the material.",
			itemPayload, strings.Join(feedback, "\n"))
	}
}

// AdversarialTemplate asks for deliberately tricky items that target known
// misconception patterns.
func AdversarialTemplate(count int, samples []string) Stage {
	return func(st *State) {
		var based string
		if len(samples) > 0 {
			based = fmt.Sprintf(
				"\nMake them similar to but harder than these existing questions:\n%s\n",
				strings.Join(samples, "\n"))
		}
		st.Instruction = fmt.Sprintf(
			"Create %d challenging adversarial quiz questions based on the study material below.%s\n"+
				"Each question should test deeper understanding: include common misconceptions, "+
				"subtle nuances, or plausible distractors that represent errors in reasoning. "+
				"Questions should appear straightforward but require careful analysis.\n"+
				"Label each with an adversarial_type: misconception, edge_case, precision, or ambiguity.",
			count, based)
	}
}
