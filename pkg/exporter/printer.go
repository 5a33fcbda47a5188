package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"docvault/pkg/backend"
	"docvault/pkg/versions"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// PrintVersions renders the registry listing. JSON output is the versions.json document.
func PrintVersions(w io.Writer, infos []versions.Info, format string) error {
	if infos == nil {
		infos = []versions.Info{}
	}
	switch format {
	case FormatText, "":
		for _, info := range infos {
			fmt.Fprintln(w, FormatInfo(info))
		}
		return nil
	case FormatJSON:
		return writeJSON(w, infos)
	case FormatYAML:
		return writeYAML(w, infos)
	default:
		return unknownFormat(format)
	}
}

// FormatInfo is `1.0 [latest]`, or `"Title" (1.0) [latest]` when the title differs.
func FormatInfo(info versions.Info) string {
	var b strings.Builder
	v := info.Version.String()
	if info.Title != "" && info.Title != v {
		fmt.Fprintf(&b, "%q (%s)", info.Title, v)
	} else {
		b.WriteString(v)
	}
	if len(info.Aliases) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(info.Aliases, ", "))
	}
	return b.String()
}

type logEntry struct {
	Hash    string   `json:"hash" yaml:"hash"`
	Parents []string `json:"parents" yaml:"parents"`
	Author  string   `json:"author" yaml:"author"`
	Email   string   `json:"email" yaml:"email"`
	Date    string   `json:"date" yaml:"date"`
	Message string   `json:"message" yaml:"message"`
}

// PrintLog renders commits newest first. Text output is one line per commit.
func PrintLog(w io.Writer, commits []backend.CommitInfo, format string) error {
	switch format {
	case FormatText, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, c := range commits {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				c.Hash.Short(), c.Author.When.Format("2006-01-02 15:04"), c.Author.Name, firstLine(c.Message))
		}
		return tw.Flush()
	case FormatJSON, FormatYAML:
		out := make([]logEntry, 0, len(commits))
		for _, c := range commits {
			e := logEntry{
				Hash:    c.Hash.String(),
				Parents: make([]string, 0, len(c.Parents)),
				Author:  c.Author.Name,
				Email:   c.Author.Email,
				Date:    c.Author.When.UTC().Format("2006-01-02T15:04:05Z07:00"),
				Message: c.Message,
			}
			for _, p := range c.Parents {
				e.Parents = append(e.Parents, p.String())
			}
			out = append(out, e)
		}
		if format == FormatJSON {
			return writeJSON(w, out)
		}
		return writeYAML(w, out)
	default:
		return unknownFormat(format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func unknownFormat(format string) error {
	return fmt.Errorf("unknown output format %q: want %s, %s or %s", format, FormatText, FormatJSON, FormatYAML)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
