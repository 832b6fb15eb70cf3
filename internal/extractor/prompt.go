package extractor

import "strings"

const analysisSystemPrompt = `You analyze meeting and voice-note transcripts and return structured notes.

Reply with a single JSON object using exactly these fields:
{
  "title": "short descriptive title, at most 200 characters",
  "summary": "two to four sentences describing what was discussed (at least 10 characters)",
  "key_points": ["most important topic", "..."],
  "action_items": ["concrete task or commitment", "..."]
}

Guidelines:
- key_points holds between 1 and 10 entries.
- action_items may be an empty list when nobody committed to anything.
- Output the JSON object only. No markdown fences and no commentary.`

const analysisUserTemplate = `Extract the title, summary, key points, and action items from this transcript.

TRANSCRIPT:
{{transcript}}`

// BuildAnalysisPrompt returns the system and user messages for one analysis call.
func BuildAnalysisPrompt(transcript string) (system, user string) {
	return analysisSystemPrompt, strings.Replace(analysisUserTemplate, "{{transcript}}", transcript, 1)
}
