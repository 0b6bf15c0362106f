package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kyptronix/spectrum-admin/admin"
	"github.com/kyptronix/spectrum-admin/cache"
)

// list is the JSON shape of every paginated result.
type list[T any] struct {
	Items      []T              `json:"items"`
	Pagination cache.Descriptor `json:"pagination"`
}

func printPage[T any](a *app, p admin.Page[T], header []string, row func(T) []string) error {
	err := a.out.print(list[T]{Items: p.Items, Pagination: p.Page}, header, func() [][]string {
		rows := make([][]string, 0, len(p.Items))
		for _, item := range p.Items {
			rows = append(rows, row(item))
		}
		return rows
	})
	if err != nil {
		return err
	}
	a.out.footer("page %d of %d (%d total)", p.Page.CurrentPage, p.Page.TotalPages, p.Page.TotalItems)
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show moderation counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			s, err := a.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.print(s, []string{"PENDING", "RESOLVED", "TOTAL", "BLOCKED USERS"}, func() [][]string {
				return [][]string{{
					strconv.Itoa(s.PendingReports),
					strconv.Itoa(s.ResolvedReports),
					strconv.Itoa(s.TotalReports()),
					strconv.Itoa(s.BlockedUsers),
				}}
			})
		},
	}
}

func newReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List pending post reports",
		Args:  cobra.NoArgs,
	}
	page, limit := pageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		p, err := a.client.Reports(cmd.Context(), a.page(*page, *limit))
		if err != nil {
			return err
		}
		return printPage(a, p, []string{"ID", "POST", "AUTHOR", "REPORTER", "REASON", "CREATED"}, func(r admin.Report) []string {
			return []string{r.ID, r.PostID, r.AuthorID(), r.Reporter.DisplayName(), truncate(r.Reason, 40), orDash(r.CreatedAt)}
		})
	}
	return cmd
}

func newBlockedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List blocked users",
		Args:  cobra.NoArgs,
	}
	page, limit := pageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		p, err := a.client.BlockedUsers(cmd.Context(), a.page(*page, *limit))
		if err != nil {
			return err
		}
		return printPage(a, p, []string{"USER", "NAME", "BLOCKED BY", "SINCE"}, func(b admin.BlockRelation) []string {
			return []string{b.BlockedUserID, b.Blocked.DisplayName(), b.BlockerUserID, orDash(b.CreatedAt)}
		})
	}
	return cmd
}

func newPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List posts",
		Args:  cobra.NoArgs,
	}
	page, limit := pageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		p, err := a.client.Posts(cmd.Context(), a.page(*page, *limit))
		if err != nil {
			return err
		}
		return printPage(a, p, []string{"ID", "AUTHOR", "LIKES", "COMMENTS", "CONTENT"}, func(post admin.Post) []string {
			return []string{
				post.ID,
				post.Author.DisplayName(),
				strconv.Itoa(int(post.Likes)),
				strconv.Itoa(int(post.Comments)),
				truncate(post.Content, 50),
			}
		})
	}
	return cmd
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
	}
	page, limit := pageFlags(cmd)
	admins := cmd.Flags().Bool("include-admins", false, "also list admin accounts")
	stats := cmd.Flags().Bool("stats", false, "show user statistics instead of the list")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		if *stats {
			c, err := a.client.UserStats(cmd.Context())
			if err != nil {
				return err
			}
			return printCounters(a, c)
		}

		p, err := a.client.Users(cmd.Context(), a.page(*page, *limit))
		if err != nil {
			return err
		}
		if !*admins {
			p.Items = admin.VisibleUsers(p.Items)
		}
		return printPage(a, p, []string{"ID", "NAME", "EMAIL", "ROLE", "ACTIVE"}, func(u admin.User) []string {
			return []string{u.Key(), u.Name(), u.Email, orDash(u.Role), strconv.FormatBool(u.IsActive.Active())}
		})
	}
	return cmd
}

func newPackagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages [id]",
		Short: "List subscription packages, or show one",
		Args:  cobra.MaximumNArgs(1),
	}
	page, limit := pageFlags(cmd)
	active := cmd.Flags().Bool("active", false, "list active packages only")
	stats := cmd.Flags().Bool("stats", false, "show package statistics")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()
		header := []string{"ID", "NAME", "PRICE", "DURATION", "ACTIVE"}
		row := func(p admin.Package) []string {
			return []string{p.ID, p.Name, fmt.Sprintf("%.2f %s", p.Price, p.Currency), orDash(p.Duration), strconv.FormatBool(p.IsActive.Active())}
		}

		switch {
		case len(args) == 1:
			p, err := a.client.Package(ctx, args[0])
			if err != nil {
				return err
			}
			return a.out.print(p, header, func() [][]string { return [][]string{row(p)} })
		case *stats:
			c, err := a.client.PackageStats(ctx)
			if err != nil {
				return err
			}
			return printCounters(a, c)
		case *active:
			ps, err := a.client.ActivePackages(ctx)
			if err != nil {
				return err
			}
			return a.out.print(ps, header, func() [][]string {
				rows := make([][]string, 0, len(ps))
				for _, p := range ps {
					rows = append(rows, row(p))
				}
				return rows
			})
		default:
			p, err := a.client.Packages(ctx, a.page(*page, *limit))
			if err != nil {
				return err
			}
			return printPage(a, p, header, row)
		}
	}
	return cmd
}

func printCounters(a *app, c admin.Counters) error {
	return a.out.print(c, []string{"METRIC", "VALUE"}, func() [][]string {
		names := make([]string, 0, len(c))
		for name := range c {
			names = append(names, name)
		}
		slices.Sort(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strconv.FormatFloat(c[name], 'f', -1, 64)})
		}
		return rows
	})
}
