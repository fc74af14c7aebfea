package boundary

import "strings"

// TranscriptPlaceholder is replaced with the pipe-formatted transcript.
const TranscriptPlaceholder = "{{transcript}}"

// TechnicianPrompt asks for boundaries at the start of each technical action.
const TechnicianPrompt = `You are an expert technician.
Given the transcript with timestamps,
identify TRUE procedure boundaries.

Boundaries appear when a NEW technical action starts:
remove, install, replace, adjust, check, inspect, test, torque,
safety, preparation, etc.

RETURN ONLY strict JSON array:
[
  {"start":"00:00:10","title":"Remove Viscous Fan"}
]

Transcript:
"""{{transcript}}"""
`

// TersePrompt is the short variant used by the end-to-end ingest.
const TersePrompt = `Identify true procedural boundaries.
Return ONLY strict JSON:

[
  {"start":"00:01:13","title":"Continuity test"}
]

Transcript:
"""{{transcript}}"""
`

// PromptByName maps a config name to a template. Unknown names are treated
// as a literal template.
func PromptByName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "technician":
		return TechnicianPrompt
	case "terse":
		return TersePrompt
	default:
		return name
	}
}

// Render fills the template with the transcript. Templates without the
// placeholder get the transcript appended.
func Render(template, transcript string) string {
	if !strings.Contains(template, TranscriptPlaceholder) {
		return template + "\n\nTranscript:\n\"\"\"" + transcript + "\"\"\"\n"
	}
	return strings.ReplaceAll(template, TranscriptPlaceholder, transcript)
}
