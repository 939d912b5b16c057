package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const navigateTimeout = 30 * time.Second

// openTab creates a tab on b and navigates it to pageURL. With stealthy set
// the tab is created through go-rod/stealth so pages that sniff automation
// behave as they would for a developer.
func openTab(ctx context.Context, b *rod.Browser, pageURL string, stealthy bool, logger *slog.Logger) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if stealthy {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return page, nil
}

// waitLoad blocks until the page's current navigation has loaded.
func waitLoad(ctx context.Context, page *rod.Page) error {
	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	return page.Context(navCtx).WaitLoad()
}
