package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/cinefriends/backend/internal/logging"
)

// actingFlags parses the flags of a user-scoped subcommand. Every such command names the
// authenticated user with -as and takes a fixed number of positional arguments.
type actingFlags struct {
	*flag.FlagSet
	as string
}

func newActingFlags(name string, out io.Writer) *actingFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	f := &actingFlags{FlagSet: fs}
	fs.StringVar(&f.as, "as", "", "id of the acting user")
	return f
}

func (f *actingFlags) parse(ctx context.Context, args []string, nargs int) (context.Context, error) {
	if err := f.Parse(args); err != nil {
		return ctx, err
	}
	if strings.TrimSpace(f.as) == "" {
		return ctx, fmt.Errorf("%s: -as <user-id> is required", f.Name())
	}
	if f.NArg() != nargs {
		return ctx, fmt.Errorf("%s: expected %d argument(s), got %d", f.Name(), nargs, f.NArg())
	}
	return logging.WithUserID(ctx, f.as), nil
}

func emit(out io.Writer, v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func subcommand(args []string, group string, choices ...string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("expected %s command: %s", group, strings.Join(choices, ", "))
	}
	for _, c := range choices {
		if args[0] == c {
			return c, args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("unknown %s command %q", group, args[0])
}

func runFriends(ctx context.Context, deps Dependencies, args []string, out io.Writer) error {
	cmd, args, err := subcommand(args, "friends", "send", "accept", "reject", "pending", "list")
	if err != nil {
		return err
	}
	fs := newActingFlags("friends "+cmd, out)
	svc := deps.Social

	switch cmd {
	case "send":
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		req, err := svc.SendFriendRequestByEmail(ctx, fs.as, fs.Arg(0))
		return emit(out, req, err)
	case "accept", "reject":
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		if cmd == "accept" {
			err = svc.AcceptFriendRequest(ctx, fs.as, fs.Arg(0))
		} else {
			err = svc.RejectFriendRequest(ctx, fs.as, fs.Arg(0))
		}
		return emit(out, map[string]string{"status": cmd + "ed"}, err)
	case "pending":
		if ctx, err = fs.parse(ctx, args, 0); err != nil {
			return err
		}
		pending, err := svc.PendingRequests(ctx, fs.as)
		return emit(out, pending, err)
	default:
		if ctx, err = fs.parse(ctx, args, 0); err != nil {
			return err
		}
		friends, err := svc.Friends(ctx, fs.as)
		return emit(out, friends, err)
	}
}

func runRecommendations(ctx context.Context, deps Dependencies, args []string, out io.Writer) error {
	cmd, args, err := subcommand(args, "recs", "send", "list", "accept", "dismiss")
	if err != nil {
		return err
	}
	fs := newActingFlags("recs "+cmd, out)
	svc := deps.Social

	switch cmd {
	case "send":
		comment := fs.String("comment", "", "note for the recipient")
		if ctx, err = fs.parse(ctx, args, 2); err != nil {
			return err
		}
		rec, err := svc.RecommendByEmail(ctx, fs.as, fs.Arg(0), fs.Arg(1), *comment)
		return emit(out, rec, err)
	case "list":
		if ctx, err = fs.parse(ctx, args, 0); err != nil {
			return err
		}
		inbox, err := svc.Inbox(ctx, fs.as)
		return emit(out, inbox, err)
	case "accept":
		if ctx, err = fs.parse(ctx, args, 2); err != nil {
			return err
		}
		rec, err := svc.AcceptRecommendation(ctx, fs.as, fs.Arg(0), fs.Arg(1))
		return emit(out, rec, err)
	default:
		if ctx, err = fs.parse(ctx, args, 2); err != nil {
			return err
		}
		err = svc.DismissRecommendation(ctx, fs.as, fs.Arg(0), fs.Arg(1))
		return emit(out, map[string]string{"status": "dismissed"}, err)
	}
}

func runMovies(ctx context.Context, deps Dependencies, args []string, out io.Writer) error {
	cmd, args, err := subcommand(args, "movies", "list", "add", "show", "toggle", "rate", "delete")
	if err != nil {
		return err
	}
	fs := newActingFlags("movies "+cmd, out)
	svc := deps.Social

	switch cmd {
	case "list":
		if ctx, err = fs.parse(ctx, args, 0); err != nil {
			return err
		}
		movies, err := svc.Movies(ctx, fs.as)
		return emit(out, movies, err)
	case "add":
		body := fs.String("body", "", "description of the movie")
		url := fs.String("url", "", "link to the movie")
		watched := fs.Bool("watched", false, "mark as already watched")
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		rec, err := svc.AddMovie(ctx, fs.as, fs.Arg(0), *body, *url, *watched)
		return emit(out, rec, err)
	case "show":
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		detail, err := svc.Movie(ctx, fs.as, fs.Arg(0))
		return emit(out, detail, err)
	case "toggle":
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		watched, err := svc.ToggleWatched(ctx, fs.as, fs.Arg(0))
		return emit(out, map[string]bool{"watched": watched}, err)
	case "rate":
		value := fs.Int("value", -1, "rating from 0 to 5")
		comment := fs.String("comment", "", "optional review")
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		rating, err := svc.RateMovie(ctx, fs.as, fs.Arg(0), *value, *comment)
		return emit(out, rating, err)
	default:
		if ctx, err = fs.parse(ctx, args, 1); err != nil {
			return err
		}
		err = svc.DeleteMovie(ctx, fs.as, fs.Arg(0))
		return emit(out, map[string]string{"status": "deleted"}, err)
	}
}

func runExport(ctx context.Context, deps Dependencies, args []string, out io.Writer) error {
	if deps.Exporter == nil {
		return errors.New("export: object store is not configured (set CINEFRIENDS_OBJECT_STORE_BUCKET)")
	}

	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(out)
	user := fs.String("user", "", "export a single user instead of everyone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *user != "" {
		location, err := deps.Exporter.Export(logging.WithUserID(ctx, *user), *user)
		return emit(out, map[string]string{"location": location}, err)
	}

	result, err := deps.Exporter.ExportAll(ctx)
	if emitErr := emit(out, result, nil); emitErr != nil {
		return emitErr
	}
	return err
}
