package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"localrag/internal/retrieval"
)

var scrollKeys = key.NewBinding(key.WithKeys("up", "down", "pgup", "pgdown"))

func (m Model) updateQuery(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.query.GoBack()
		m.queryInput.SetValue("")
		m.lastQuery = ""
		return m, nil
	case msg.String() == m.query.SubmitKey():
		m.query.SetQuery(m.queryInput.Value())
		cmd := m.query.HandleKey(msg.String())
		if cmd != nil {
			m.lastQuery = strings.TrimSpace(m.queryInput.Value())
		}
		return m, lift(cmd)
	case key.Matches(msg, scrollKeys):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.queryInput, cmd = m.queryInput.Update(msg)
	if v := m.queryInput.Value(); v != m.store.Query() {
		m.query.SetQuery(v)
	}
	return m, cmd
}

func (m Model) renderResult() string {
	res := m.store.Result()
	if strings.TrimSpace(res) == "" {
		return mutedStyle.Render("No answer yet.")
	}
	return wrap(m.viewport.Width, highlightBestSentence(res, m.lastQuery))
}

func (m Model) queryView() string {
	return boxStyle.Render(m.queryInput.View()) + "\n" + boxStyle.Render(m.viewport.View())
}

// highlightBestSentence emphasises the sentence of text sharing the most
// terms with query. Nothing is emphasised when no sentence shares a term.
func highlightBestSentence(text, query string) string {
	sentences := retrieval.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := retrieval.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := -1, 0
	for i, s := range sentences {
		score := 0
		for t := range retrieval.TokenSet(s) {
			if _, ok := qTokens[t]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}
