package pages

import (
	cmp "maragu.dev/gomponents"
	g "maragu.dev/gomponents/html"
)

// Info is the landing page served when the operator opts out of the
// repository redirect. It documents the wire protocol well enough to
// hand-test the relay with a browser console or websocat.
func Info(repoURL string) cmp.Node {
	return g.HTML(
		g.Lang("en"),
		g.Head(
			g.Meta(g.Charset("utf-8")),
			g.TitleEl(cmp.Text("Courier")),
		),
		g.Body(
			g.Class("container"),
			g.H1(cmp.Text("Courier")),
			g.P(cmp.Text("A WebSocket message relay. Publishers authenticate, bind a name, and push JSON messages; subscribers pick a publisher and a topic and receive matching messages as they arrive.")),
			g.H2(cmp.Text("Publisher handshake")),
			g.Ul(
				g.Li(g.Code(cmp.Text("pub auth <password>"))),
				g.Li(g.Code(cmp.Text("pub name <identifier>"))),
				g.Li(g.Code(cmp.Text(`{"topic":"temp","data":"21.5"}`))),
			),
			g.H2(cmp.Text("Subscriber handshake")),
			g.Ul(
				g.Li(g.Code(cmp.Text(`{"publisher":"<identifier>","topic":"<topic>"}`))),
			),
			g.P(
				cmp.Text("Source and full documentation: "),
				g.A(g.Href(repoURL), cmp.Text(repoURL)),
			),
		),
	)
}
