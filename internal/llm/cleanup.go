package llm

import (
	"regexp"
	"strings"
)

// Models served through the instruction-delimited prompt occasionally
// leak a trailing "<", or a complete or cut-off "[INST]"/"[/INST]"
// fragment, at the end of their output. The filter is deliberately
// scoped to exactly that artifact family.
var artifactTail = regexp.MustCompile(`(?:\s|<|\[/?I?N?S?T?\]?)+$`)

// CleanOutput strips trailing delimiter artifacts and surrounding
// whitespace from raw model output. Idempotent.
func CleanOutput(s string) string {
	return strings.TrimSpace(artifactTail.ReplaceAllString(s, ""))
}

// ArtifactOnly reports whether s consists entirely of whitespace and
// delimiter fragments, i.e. whether it could be the start of a cut-off
// delimiter sequence and should be held back during streaming.
func ArtifactOnly(s string) bool {
	return CleanOutput(s) == ""
}
