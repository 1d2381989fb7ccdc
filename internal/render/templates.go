package render

// Template slot names. A custom template directory may redefine any of them.
const (
	SmallTemplate = "small-event-template"
	LargeTemplate = "large-event-template"
	EntryTemplate = "entry-template"
	PageTemplate  = "page"
)

const defaultTemplates = `
{{define "small-event-template"}}<li class="event event-small" data-id="{{.ID}}">
  <i class="fa fa-{{.Icon}}"></i>
  <a class="author" href="{{.Author}}">{{.AuthorName}}</a>
  <span class="message">{{.Message}}</span>
  <a class="target" href="{{.Target}}">{{.TargetName}}</a>
  {{if .ActionURL}}<a class="action" href="{{.ActionURL}}">{{.ActionName}}</a>{{end}}
  <span class="time">{{.Time}}</span>
</li>{{end}}

{{define "large-event-template"}}<li class="event event-large" data-id="{{.ID}}">
  <div class="header">
    {{if .Avatar}}<img class="avatar" src="{{.Avatar}}" alt="{{.AuthorName}}">{{end}}
    <i class="fa fa-{{.Icon}}"></i>
    <a class="author" href="{{.Author}}">{{.AuthorName}}</a>
    <span class="message">{{.Message}}</span>
    <a class="target" href="{{.Target}}">{{.TargetName}}</a>
    <span class="time">{{.Time}}</span>
  </div>
  {{with .Labels}}<ul class="labels">{{range .}}<li class="label"{{if .Color}} style="background-color: #{{.Color}}"{{end}}>{{.Name}}</li>{{end}}</ul>{{end}}
  <div class="body">{{markdown .Body}}</div>
  {{if .ActionURL}}<a class="action" href="{{.ActionURL}}">{{.ActionName}}</a>{{end}}
</li>{{end}}

{{define "entry-template"}}<li class="event"><a href="{{.ActionURL}}">{{.AuthorName}}</a> {{.Message}} <a href="{{.Target}}">{{.TargetName}}</a> <span class="time">{{.Time}}</span></li>{{end}}

{{define "page"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h3>{{.Title}}</h3>
  {{if .Loading}}<div id="loading">Loading events…</div>{{end}}
  <ul id="events">
{{range .Items}}    {{.}}
{{end}}  </ul>
</body>
</html>
{{end}}
`
