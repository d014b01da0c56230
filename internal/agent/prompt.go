package agent

import (
	"fmt"
	"strings"

	"github.com/RafaelZelak/agentchat/internal/tools"
)

const FinalAnswer = "Final Answer"

const defaultPrefix = `Assistant is a large language model built to help with a wide range of tasks, from answering simple questions to giving in-depth explanations and discussions on many topics. Assistant produces natural, human-like text and keeps the conversation coherent and relevant.

Assistant keeps learning from the conversation and can use the tools listed by the user to look up information it does not have. Assistant should use them whenever the answer depends on facts it cannot be sure about.`

const toolsSection = `TOOLS
------
Assistant can ask the user to use tools to look up information that may help answer the user's original question. The tools the human can use are:

%s

`

const formatInstructions = `RESPONSE FORMAT INSTRUCTIONS
----------------------------

When responding to me, please output a response in one of two formats:

**Option 1:**
Use this if you want the human to use a tool.
Markdown code snippet formatted in the following schema:

` + "```json" + `
{
    "action": string, \ The action to take. Must be one of %s
    "action_input": string \ The input to the action
}
` + "```" + `

**Option #2:**
Use this if you want to respond directly to the human. Markdown code snippet formatted in the following schema:

` + "```json" + `
{
    "action": "Final Answer",
    "action_input": string \ You should put what you want to return to the user here
}
` + "```" + `

USER'S INPUT
--------------------
Here is the user's input (remember to respond with a markdown code snippet of a json blob with a single action, and NOTHING else):

%s`

const toolResponseTemplate = `TOOL RESPONSE:
---------------------
%s

USER'S INPUT
--------------------

Okay, so what is the response to my last comment? If using information obtained from the tools you must mention it explicitly without mentioning the tool names - I have forgotten all TOOL RESPONSES! Remember to respond with a markdown code snippet of a json blob with a single action, and NOTHING else.`

const finalAnswerRequest = `I now need to return a final answer based on the previous steps. Respond with the "Final Answer" action only.`

const invalidFormatObservation = "Invalid or incomplete response. Respond with a markdown code snippet of a json blob with a single action, and NOTHING else."

func renderUserTurn(reg *tools.Registry, input string) string {
	var sb strings.Builder
	infos := reg.Infos()
	if len(infos) > 0 {
		lines := make([]string, 0, len(infos))
		for _, ti := range infos {
			lines = append(lines, "> "+ti.Name+": "+ti.Description)
		}
		fmt.Fprintf(&sb, toolsSection, strings.Join(lines, "\n"))
	}
	names := append(reg.Names(), FinalAnswer)
	fmt.Fprintf(&sb, formatInstructions, quoteList(names), input)
	return sb.String()
}

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func formatObservation(obs string) string {
	return fmt.Sprintf(toolResponseTemplate, obs)
}
