package main

import (
	"fmt"
	"strconv"

	"chronicle/internal/config"
	"chronicle/internal/models"
	"chronicle/internal/repository"
	"chronicle/internal/seed"
	"chronicle/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// opener connects to the configured database.
type opener func() (*gorm.DB, *config.Config, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Chronicle maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		roleCmd(open, "promote", "Grant the admin role to a user", models.RoleAdmin),
		roleCmd(open, "demote", "Revoke the admin role from a user", models.RoleUser),
		listAdminsCmd(open),
		seedCmd(open),
	)
	return root
}

func roleCmd(open opener, use, short, role string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			db, _, err := open()
			if err != nil {
				return err
			}

			users := service.NewUserService(repository.NewUserRepository(db))
			ctx := cmd.Context()
			current, err := users.GetUser(ctx, uint(id))
			if err != nil {
				return err
			}
			if current.Role == role {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (ID: %d) already has role %s\n", current.Username, current.ID, role)
				return nil
			}
			updated, err := users.SetRole(ctx, uint(id), role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (ID: %d) is now %s\n", updated.Username, updated.ID, updated.Role)
			return nil
		},
	}
}

func listAdminsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "List all admin accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := open()
			if err != nil {
				return err
			}
			admins, err := service.NewUserService(repository.NewUserRepository(db)).ListAdmins(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(admins) == 0 {
				fmt.Fprintln(out, "No admins found")
				return nil
			}
			for _, a := range admins {
				fmt.Fprintf(out, "ID: %d | Username: %s | Email: %s\n", a.ID, a.Username, a.Email)
			}
			return nil
		},
	}
}

func seedCmd(open opener) *cobra.Command {
	var (
		opts     seed.Options
		seedFlag int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := open()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production database")
			}
			opts.Categories = cfg.CategoryList()
			res, err := seed.New(db, seedFlag).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d posts, %d comments (password %q)\n",
				len(res.Users), len(res.Posts), res.Comments, seed.DefaultPassword)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.NumUsers, "users", 10, "number of users")
	cmd.Flags().IntVar(&opts.NumPosts, "posts", 50, "number of posts")
	cmd.Flags().IntVar(&opts.NumComments, "comments", 100, "number of comments")
	cmd.Flags().Float64Var(&opts.DraftRatio, "drafts", 0.1, "share of posts created as drafts")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "delete existing content first")
	cmd.Flags().BoolVar(&opts.SkipBcrypt, "fast", false, "use the cheapest bcrypt cost")
	cmd.Flags().Int64Var(&seedFlag, "seed", 0, "random seed for reproducible content")
	return cmd
}
