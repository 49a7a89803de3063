package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notifier turns project events into emails. Sends run in the
// background; failures are logged and never fail the operation that
// triggered them.
type Notifier struct {
	mailer  Mailer
	baseURL string
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func New(mailer Mailer, baseURL string, logger zerolog.Logger) *Notifier {
	return &Notifier{mailer: mailer, baseURL: baseURL, logger: logger}
}

func (n *Notifier) MemberAdded(ctx context.Context, email, projectName, projectSlug, addedBy string) {
	link := fmt.Sprintf("%s/projects/%s", n.baseURL, url.PathEscape(projectSlug))
	subject := "You were added to " + projectName
	body := fmt.Sprintf(
		`<p>%s added you to <strong>%s</strong>.</p>`+
			`<p><a href="%s">Open the project</a></p>`,
		html.EscapeString(addedBy), html.EscapeString(projectName), html.EscapeString(link),
	)

	n.send(ctx, email, subject, body)
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) {
	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := n.mailer.Send(ctx, to, subject, body); err != nil {
			n.logger.Warn().Err(err).Str("to", to).Str("subject", subject).Msg("notification failed")
		}
	}()
}

// Wait blocks until every notification already started has been sent
// or has failed.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
