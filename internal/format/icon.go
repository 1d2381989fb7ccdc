package format

// DefaultIcon is returned for event tags without an entry in the table.
const DefaultIcon = "globe"

var icons = map[string]string{
	"github-wiki":           "book",
	"github-push":           "code-fork",
	"github-pull-request":   "exchange",
	"github-issue":          "bug",
	"github-issue-comment":  "comment",
	"github-commit-comment": "comments",
}

// Icon maps an event tag to its icon identifier.
func Icon(event string) string {
	if icon, ok := icons[event]; ok {
		return icon
	}
	return DefaultIcon
}
