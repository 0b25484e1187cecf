package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/model"
	"github.com/schollz/progressbar/v3"
)

// Queue is the approval queue an operator works through.
type Queue interface {
	PendingItems(ctx context.Context) ([]model.ReportItem, error)
	Approve(ctx context.Context, itemID, body string) (*model.ReportItem, error)
	Dismiss(ctx context.Context, itemID string) (*model.ReportItem, error)
}

// Action is what the operator decided to do with one report item.
type Action string

// Review actions.
const (
	ActionApprove Action = "approve"
	ActionSkip    Action = "skip"
	ActionDismiss Action = "dismiss"
)

// Decision is the operator's answer for one item. Body is set when the draft
// was edited before approval.
type Decision struct {
	Action Action
	Body   string
}

// ReviewStats counts the outcomes of a review session.
type ReviewStats struct {
	Duration  time.Duration
	Approved  int
	Edited    int
	Skipped   int
	Dismissed int
	Failed    int
}

// endOfDraft terminates multi-line draft input.
const endOfDraft = "."

// Prompter walks an operator through pending report items on a terminal.
type Prompter struct {
	startTime   time.Time
	writer      io.Writer
	reader      *NonBlockingReader
	progressBar *progressbar.ProgressBar
	stats       ReviewStats
	statsMutex  sync.RWMutex
}

// NewCLIPrompter creates a new CLI prompter with the given reader and writer.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader:    NewNonBlockingReader(reader),
		writer:    writer,
		startTime: time.Now(),
	}
}

// Review asks about every pending item in queue order and applies each
// decision as soon as it is made. A failed approval is reported and the
// session moves on; the item stays pending.
func (p *Prompter) Review(ctx context.Context, queue Queue) (ReviewStats, error) {
	items, err := queue.PendingItems(ctx)
	if err != nil {
		return ReviewStats{}, fmt.Errorf("failed to load approval queue: %w", err)
	}
	if len(items) == 0 {
		p.println(FormatSuccess("Nothing awaiting approval"))
		return p.Stats(), nil
	}

	p.initProgressBar(len(items))

	for i, item := range items {
		p.printf("\n[%d/%d] ", i+1, len(items))

		decision, err := p.ReviewItem(ctx, item)
		if err != nil {
			return p.Stats(), err
		}

		switch decision.Action {
		case ActionApprove:
			applied, err := queue.Approve(ctx, item.ID, decision.Body)
			if err != nil {
				p.increment(func(s *ReviewStats) { s.Failed++ })
				p.println(FormatError(fmt.Sprintf("Could not apply %s: %v", item.ID, err)))
				break
			}
			p.increment(func(s *ReviewStats) {
				s.Approved++
				if decision.Body != "" {
					s.Edited++
				}
			})
			p.println(FormatSuccess(fmt.Sprintf("Sent to %s, %d invoice(s) reconciled", applied.Sender, len(applied.Matched))))
			if applied.Error != "" {
				p.println(FormatWarning(applied.Error))
			}
		case ActionDismiss:
			if _, err := queue.Dismiss(ctx, item.ID); err != nil {
				p.increment(func(s *ReviewStats) { s.Failed++ })
				p.println(FormatError(fmt.Sprintf("Could not dismiss %s: %v", item.ID, err)))
				break
			}
			p.increment(func(s *ReviewStats) { s.Dismissed++ })
			p.println(FormatWarning("Dismissed " + item.ID))
		case ActionSkip:
			p.increment(func(s *ReviewStats) { s.Skipped++ })
		}

		p.updateProgress()
	}

	p.finishProgress()
	return p.Stats(), nil
}

// ReviewItem shows one item and reads the operator's decision. Items without
// a pending draft can only be dismissed or skipped.
func (p *Prompter) ReviewItem(ctx context.Context, item model.ReportItem) (Decision, error) {
	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	default:
	}

	if _, err := fmt.Fprintln(p.writer, RenderBox(itemTitle(item), formatItem(item))); err != nil {
		return Decision{}, fmt.Errorf("failed to write item box: %w", err)
	}

	approvable := item.NeedsApproval()
	if approvable {
		p.println("  [A] Approve & send")
		p.println("  [E] Edit draft, then send")
	}
	p.println("  [S] Skip for now")
	p.println("  [D] Dismiss without sending")
	p.println("")

	valid := []string{"s", "d"}
	if approvable {
		valid = append([]string{"a", "e"}, valid...)
	}

	choice, err := p.promptChoice(ctx, "Choice", valid)
	if err != nil {
		return Decision{}, err
	}

	switch choice {
	case "a":
		return Decision{Action: ActionApprove}, nil
	case "e":
		body, err := p.promptDraft(ctx, item.Draft)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Action: ActionApprove, Body: body}, nil
	case "d":
		return Decision{Action: ActionDismiss}, nil
	default:
		return Decision{Action: ActionSkip}, nil
	}
}

// Stats returns the counts so far.
func (p *Prompter) Stats() ReviewStats {
	p.statsMutex.RLock()
	defer p.statsMutex.RUnlock()

	stats := p.stats
	stats.Duration = time.Since(p.startTime)
	return stats
}

// ShowCompletion prints the session summary.
func (p *Prompter) ShowCompletion() {
	stats := p.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "%s Approved:  %d (%d edited)\n", SuccessIcon, stats.Approved, stats.Edited)
	fmt.Fprintf(&b, "%s Dismissed: %d\n", ErrorIcon, stats.Dismissed)
	fmt.Fprintf(&b, "%s Skipped:   %d\n", InfoIcon, stats.Skipped)
	if stats.Failed > 0 {
		fmt.Fprintf(&b, "%s Failed:    %d\n", WarningIcon, stats.Failed)
	}
	fmt.Fprintf(&b, "Time: %s", stats.Duration.Round(time.Second))

	p.println(RenderBox("Review Complete", b.String()))
}

func itemTitle(item model.ReportItem) string {
	switch item.Kind {
	case model.ItemDraft:
		return fmt.Sprintf("%s Reply to %s", MailIcon, item.Sender)
	case model.ItemManualReview:
		return fmt.Sprintf("%s Manual review: %s", WarningIcon, item.Sender)
	default:
		return fmt.Sprintf("%s %s", InfoIcon, item.Sender)
	}
}

func formatItem(item model.ReportItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Item:"), item.ID)
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("State:"), item.State)
	if item.ThreadID != "" {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Thread:"), item.ThreadID)
	}

	if item.Kind == model.ItemDraft || len(item.Matched) > 0 || len(item.Missing) > 0 {
		fmt.Fprintf(&b, "\n%s\n%s\n", SuccessStyle.Render(InvoiceIcon+" Received"), RenderList(item.Matched))
		fmt.Fprintf(&b, "%s\n%s\n", WarningStyle.Render(InvoiceIcon+" Still missing"), RenderList(item.Missing))
	}

	if item.Reason != "" {
		fmt.Fprintf(&b, "\n%s %s\n", WarningStyle.Render("Needs attention:"), item.Reason)
	}
	if item.ContactNote != "" {
		fmt.Fprintf(&b, "\n%s %s\n", InfoStyle.Render("Contact change:"), item.ContactNote)
	}
	if item.ArchiveNote != "" {
		fmt.Fprintf(&b, "\n%s %s\n", InfoStyle.Render("Archive:"), item.ArchiveNote)
	}
	if item.Error != "" {
		fmt.Fprintf(&b, "\n%s %s\n", ErrorStyle.Render("Last error:"), item.Error)
	}

	if item.Draft != "" {
		fmt.Fprintf(&b, "\n%s\n%s", LabelStyle.Render("Draft:"), item.Draft)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", inputError(ctx, err)
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		p.println(FormatError("Invalid choice. Please try again."))
	}
}

// promptDraft reads a replacement draft, one line at a time, until a line
// holding only ".". Entering "." straight away keeps the current draft.
func (p *Prompter) promptDraft(ctx context.Context, current string) (string, error) {
	p.println(FormatInfo(`Enter the new draft. Finish with a line containing only "."`))

	var lines []string
	for {
		line, err := p.reader.ReadString(ctx, '\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				lines = append(lines, line)
				break
			}
			return "", inputError(ctx, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == endOfDraft {
			break
		}
		lines = append(lines, line)
	}

	body := strings.TrimSpace(strings.Join(lines, "\n"))
	if body == "" {
		p.println(FormatInfo("Keeping the original draft"))
		return current, nil
	}
	return body, nil
}

func inputError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrInputCancelled):
		return ctx.Err()
	case errors.Is(err, io.EOF):
		return common.NewUserError("input terminated", err)
	default:
		return err
	}
}

func (p *Prompter) initProgressBar(total int) {
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing queue...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *Prompter) updateProgress() {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

func (p *Prompter) finishProgress() {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

func (p *Prompter) increment(fn func(*ReviewStats)) {
	p.statsMutex.Lock()
	defer p.statsMutex.Unlock()
	fn(&p.stats)
}

func (p *Prompter) println(s string) {
	if _, err := fmt.Fprintln(p.writer, s); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func (p *Prompter) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(p.writer, format, args...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}
