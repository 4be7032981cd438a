package synthesis

import "strings"

const systemPrompt = `You are a careful legal analyst for Czech law. You answer only from the supplied context and you never invent facts or reference codes.`

const critiqueTemplate = `You will be given the context of a question and the question you need to answer.

Context:
<context>

Question:
<question>

Think before answering, using the Chain of Thought method step by step.

Produce AT LEAST 3 answers. Each answer must use the Chain of Thought method and highlight the key points that serve as evidence.
All answers must be independent: no answer may refer to another answer or use another answer's result as input.

Requirements for each answer:
- Cover every relevant aspect of the question: entities, obligations, rights, competences, procedures, deadlines, numbers and dates found in the context.
- Support every statement with evidence from the context and attach its reference code as [ref: <reference code>] immediately after the statement.
- Use only reference codes that appear in the context. Never add information that is not in the context.
- Structure: briefly analyse the question, then give numbered steps with a heading and a short explanation each, an Evaluation for each step (review the reasoning, check for errors or omissions, confirm or adjust), and finish with a Conclusion.
- Use Markdown to highlight key points.

Then critique every answer, give each answer a vote from 1 to 10 based on its critique, and write a conclusion that names the most accurate, complete and logical answer.
If several answers share the highest vote, choose the one generated LAST.

If the chosen answer's vote is below 10, or the conclusion mentions any deficiency, write deeper_wider_than_chosen_answer: a better, deeper and wider answer that merges the chosen answer with what the other answers add, citing only reference codes present in the context.
Return None for deeper_wider_than_chosen_answer only when the chosen answer has a vote of 10 and the conclusion mentions no deficiency.

Return strictly the JSON below and NOTHING ELSE. Do not change the format.

{
 "analysis": [
  {
   "a1": "<answer 1>",
   "critique": "<critique of answer 1>",
   "question": "<one follow-up question that would fill the gaps named in the critique, or None>",
   "vote": "<integer vote from 1 to 10>"
  },
  {
   "a2": "<answer 2>",
   "critique": "<critique of answer 2>",
   "question": "<follow-up question or None>",
   "vote": "<integer vote from 1 to 10>"
  },
  {
   "a3": "<answer 3>",
   "critique": "<critique of answer 3>",
   "question": "<follow-up question or None>",
   "vote": "<integer vote from 1 to 10>"
  }
 ],
 "conclusion": "<overall critique and the rationale for the chosen answer>",
 "chosen": "<id of the chosen answer, e.g. a3>",
 "chosen_answer": "<full text of the chosen answer>",
 "vote_chosen_answer": "<vote of the chosen answer>",
 "deeper_wider_than_chosen_answer": "<improved answer, or None>",
 "critique": "<critique of the final answer>",
 "question": "<one specific question that would help find the missing information, or None when the final answer is perfect>"
}`

func buildPrompt(question, contextBlock string) string {
	r := strings.NewReplacer("<context>", contextBlock, "<question>", question)
	return r.Replace(critiqueTemplate)
}
