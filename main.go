package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cli/browser"
	"github.com/rs/zerolog"
	zero "github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/gotoot/internal/client"
	"github.com/sidereusnuntius/gotoot/internal/config"
	"github.com/sidereusnuntius/gotoot/internal/credstore/sqlitestore"
	"github.com/sidereusnuntius/gotoot/internal/domain"
	"github.com/sidereusnuntius/gotoot/internal/feed"
	"github.com/sidereusnuntius/gotoot/internal/initialization"
	"github.com/sidereusnuntius/gotoot/internal/session"
)

const usage = `commands:
  login <instance>      register with an instance and open the authorization page
  code <auth-code>      finish login with the code copied from the browser
  home | local | fed    refresh and show a timeline
  more <home|local|fed> load the next, older page of a timeline
  notif                 show notifications
  post <text>           publish a status
  reply <id> <text>     reply to a status
  fav <id>              toggle favourite on a status
  boost <id>            toggle boost on a status
  search <query>        search accounts, statuses and hashtags
  profile <id>          show an account and its recent statuses
  instance              show details about the logged-in instance
  whoami                show the logged-in account
  logout                forget the stored session
  quit`

func main() {
	zero.Logger = zero.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg, err := config.ReadConfig()
	if err != nil {
		zero.Fatal().Err(err).Msg("failed to read configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	d, err := initialization.OpenDB(cfg.DbUrl)
	if err != nil {
		zero.Fatal().Err(err).Msg("failed to open credential database")
	}
	defer d.Close()

	if err := initialization.SetupDB(d, cfg.MigrationsFolder, cfg.DbUrl); err != nil {
		zero.Fatal().Err(err).Msg("failed to migrate credential database")
	}

	api := client.New(&http.Client{})
	sess := session.New(api, sqlitestore.New(d), cfg.ClientName)
	feeds := feed.New(api, cfg.PageSize)

	ctx := context.Background()
	restored, err := sess.Restore(ctx)
	if err != nil {
		zero.Error().Err(err).Msg("failed to restore session")
	}
	if restored {
		fmt.Printf("logged in as @%s on %s\n", sess.Account().Acct, sess.Instance())
	} else {
		fmt.Println("not logged in; use \"login <instance>\" to get started")
	}

	a := &app{cfg: cfg, api: api, session: sess, feeds: feeds}
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return
		}
		if line != "" {
			a.dispatch(ctx, line)
		}
		fmt.Print("> ")
	}
}

type app struct {
	cfg     config.Configuration
	api     *client.Client
	session *session.Session
	feeds   *feed.Store
}

func (a *app) dispatch(ctx context.Context, line string) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch cmd {
	case "help":
		fmt.Println(usage)
	case "login":
		err = a.login(ctx, rest)
	case "code":
		err = a.code(ctx, rest)
	case "home":
		err = a.showTimeline(ctx, client.TimelineHome)
	case "local":
		err = a.showTimeline(ctx, client.TimelineLocal)
	case "fed":
		err = a.showTimeline(ctx, client.TimelineFederated)
	case "more":
		err = a.more(ctx, rest)
	case "notif":
		err = a.notifications(ctx)
	case "post":
		err = a.post(ctx, rest, "")
	case "reply":
		id, text, _ := strings.Cut(rest, " ")
		err = a.post(ctx, strings.TrimSpace(text), id)
	case "fav":
		err = a.toggle(ctx, rest, a.feeds.ToggleFavourite)
	case "boost":
		err = a.toggle(ctx, rest, a.feeds.ToggleReblog)
	case "search":
		err = a.search(ctx, rest)
	case "profile":
		err = a.profile(ctx, rest)
	case "instance":
		err = a.instanceInfo(ctx)
	case "whoami":
		a.whoami()
	case "logout":
		a.session.Logout(ctx)
		fmt.Println("logged out")
	default:
		fmt.Printf("unknown command %q; try \"help\"\n", cmd)
	}
	if err != nil {
		fmt.Println("error:", err)
	}
}

func (a *app) login(ctx context.Context, host string) error {
	if err := a.session.RegisterApp(ctx, host); err != nil {
		return err
	}
	authURL, err := a.session.AuthorizeURL()
	if err != nil {
		return err
	}
	fmt.Println("authorize gotoot at:", authURL)
	fmt.Println("then paste the code with: code <auth-code>")
	if err := browser.OpenURL(authURL); err != nil {
		zero.Debug().Err(err).Msg("could not open browser")
	}
	return nil
}

func (a *app) code(ctx context.Context, code string) error {
	if err := a.session.ExchangeCode(ctx, code); err != nil {
		return err
	}
	fmt.Printf("logged in as @%s on %s\n", a.session.Account().Acct, a.session.Instance())
	return nil
}

func (a *app) showTimeline(ctx context.Context, t client.Timeline) error {
	if err := a.feeds.Refresh(ctx, t); err != nil {
		return err
	}
	printStatuses(a.feeds.Timeline(t))
	return nil
}

func (a *app) more(ctx context.Context, which string) error {
	t, err := timelineByName(which)
	if err != nil {
		return err
	}
	if err := a.feeds.LoadMore(ctx, t); err != nil {
		return err
	}
	printStatuses(a.feeds.Timeline(t))
	return nil
}

func timelineByName(name string) (client.Timeline, error) {
	switch name {
	case "home", "":
		return client.TimelineHome, nil
	case "local":
		return client.TimelineLocal, nil
	case "fed", "federated":
		return client.TimelineFederated, nil
	default:
		return "", fmt.Errorf("unknown timeline %q", name)
	}
}

func (a *app) notifications(ctx context.Context) error {
	if err := a.feeds.RefreshNotifications(ctx); err != nil {
		return err
	}
	for _, n := range a.feeds.Notifications() {
		fmt.Printf("[%s] %s @%s", n.ID, n.Type, n.Account.Acct)
		if n.Status != nil {
			fmt.Printf(": %s", oneLine(n.Status.Content))
		}
		fmt.Println()
	}
	return nil
}

func (a *app) post(ctx context.Context, text, inReplyToID string) error {
	status, err := a.feeds.Post(ctx, text, a.cfg.Visibility, inReplyToID)
	if err != nil {
		return err
	}
	fmt.Println("posted", status.ID)
	return nil
}

// toggle resolves an id to the canonical status held in any timeline and
// applies the given action to it.
func (a *app) toggle(ctx context.Context, id string, action func(context.Context, domain.Status) (domain.Status, error)) error {
	status, ok := a.findStatus(id)
	if !ok {
		return fmt.Errorf("status %q is not in any loaded timeline", id)
	}
	updated, err := action(ctx, status)
	if err != nil {
		return err
	}
	printStatus(updated)
	return nil
}

// findStatus looks an id up across the loaded timelines, resolving boosts to
// the status they display.
func (a *app) findStatus(id string) (domain.Status, bool) {
	for _, t := range []client.Timeline{client.TimelineHome, client.TimelineLocal, client.TimelineFederated} {
		for _, status := range a.feeds.Timeline(t) {
			target := status.Target()
			if status.ID == id || target.ID == id {
				return *target, true
			}
		}
	}
	return domain.Status{}, false
}

func (a *app) search(ctx context.Context, q string) error {
	results, err := a.feeds.Search(ctx, q, "")
	if err != nil {
		return err
	}
	for _, account := range results.Accounts {
		fmt.Printf("account  @%s (%s)\n", account.Acct, account.DisplayName)
	}
	for _, tag := range results.Hashtags {
		fmt.Printf("hashtag  #%s\n", tag.Name)
	}
	printStatuses(results.Statuses)
	return nil
}

func (a *app) profile(ctx context.Context, id string) error {
	account, err := a.api.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("@%s (%s): %d posts, %d followers, %d following\n",
		account.Acct, account.DisplayName,
		account.StatusesCount, account.FollowersCount, account.FollowingCount)
	statuses, err := a.api.GetAccountStatuses(ctx, id, a.cfg.PageSize, "")
	if err != nil {
		return err
	}
	printStatuses(statuses)
	return nil
}

func (a *app) instanceInfo(ctx context.Context) error {
	info, err := a.api.GetInstance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s) running %s\n", info.Title, info.URI, info.Version)
	if info.Description != "" {
		fmt.Println("   ", oneLine(info.Description))
	}
	return nil
}

func (a *app) whoami() {
	account := a.session.Account()
	if account == nil {
		fmt.Println("not logged in")
		return
	}
	fmt.Printf("@%s (%s) on %s: %d posts, %d followers\n",
		account.Acct, account.DisplayName, a.session.Instance(),
		account.StatusesCount, account.FollowersCount)
}

func printStatuses(statuses []domain.Status) {
	for _, status := range statuses {
		printStatus(status)
	}
}

func printStatus(status domain.Status) {
	target := status.Target()
	fmt.Printf("[%s] @%s", target.ID, target.Account.Acct)
	if status.Reblog != nil {
		fmt.Printf(" (boosted by @%s)", status.Account.Acct)
	}
	marks := ""
	if target.Favourited != nil && *target.Favourited {
		marks += " ★"
	}
	if target.Reblogged != nil && *target.Reblogged {
		marks += " ⇄"
	}
	fmt.Printf("%s\n    %s\n    %d replies, %d boosts, %d favourites\n",
		marks, oneLine(target.Content),
		target.RepliesCount, target.ReblogsCount, target.FavouritesCount)
}

func oneLine(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
