// Package report builds the markdown fragments appended to scan artifact
// files: section titles, fenced command blocks, and captured output.
package report

import "strings"

// Builder accumulates a markdown fragment.
type Builder struct {
	sb strings.Builder
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Title appends a top-level markdown heading.
func (b *Builder) Title(title string) *Builder {
	b.sb.WriteString("# ")
	b.sb.WriteString(title)
	b.sb.WriteString("\n")
	return b
}

// Section appends a second-level heading.
func (b *Builder) Section(title string) *Builder {
	b.sb.WriteString("## ")
	b.sb.WriteString(title)
	b.sb.WriteString("\n")
	return b
}

// Command appends the command that was run inside a bash fence.
func (b *Builder) Command(command string) *Builder {
	b.sb.WriteString("```bash\n")
	b.sb.WriteString(command)
	b.sb.WriteString("\n```\n")
	return b
}

// CommandOutput appends captured output under an "**Output**" label inside a
// plain fence. Trailing whitespace is stripped so fences stay tight.
func (b *Builder) CommandOutput(output string) *Builder {
	b.sb.WriteString("**Output**\n\n```\n")
	b.sb.WriteString(strings.TrimRight(output, " \t\r\n"))
	b.sb.WriteString("\n```\n")
	return b
}

// Text appends raw markdown text followed by a newline.
func (b *Builder) Text(text string) *Builder {
	b.sb.WriteString(text)
	b.sb.WriteString("\n")
	return b
}

// NewLine appends a blank line.
func (b *Builder) NewLine() *Builder {
	b.sb.WriteString("\n")
	return b
}

// String returns the accumulated markdown.
func (b *Builder) String() string {
	return b.sb.String()
}
