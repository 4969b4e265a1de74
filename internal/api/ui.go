package api

import (
	"html"
	"net/http"
)

// replyCardPage is the minimal page shown when an external trigger wants
// to display a single reply without opening the full client.
const replyCardPage = `<!doctype html>
<html>
<head>
<meta name="viewport" content="width=device-width,initial-scale=1,maximum-scale=1">
<meta name="color-scheme" content="dark light">
<title>Assistant</title>
<style>
  :root{ color-scheme: dark; }
  body{
    margin:0; background:#0b0b0d; color:#fff;
    font-family:-apple-system, system-ui, Segoe UI, Roboto, Helvetica, Arial, sans-serif;
    display:flex; flex-direction:column; align-items:center; justify-content:center;
    min-height:100vh; padding:24px; gap:18px;
  }
  .bubble{
    max-width:760px; width:calc(100% - 32px);
    background:#141418; border:1px solid #222; border-radius:16px;
    padding:16px 18px; box-shadow:0 6px 20px rgba(0,0,0,.25);
    font-size:18px; line-height:1.45; white-space:pre-wrap; word-wrap:break-word;
  }
</style>
</head>
<body>
  <div class="bubble">`

const replyCardFooter = `</div>
</body>
</html>`

// ReplyCard serves a small HTML page rendering ?text= (or ?q=) inside a
// chat bubble. The text is escaped; this endpoint never interprets it.
func ReplyCard(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		text = r.URL.Query().Get("q")
	}
	if text == "" {
		text = "..."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(replyCardPage + html.EscapeString(text) + replyCardFooter))
}
