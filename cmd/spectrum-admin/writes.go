package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kyptronix/spectrum-admin/admin"
)

func printAck(a *app, ack admin.Ack) error {
	return a.out.print(ack, []string{"SUCCESS", "MESSAGE"}, func() [][]string {
		return [][]string{{strconv.FormatBool(ack.Success), orDash(ack.Message)}}
	})
}

func newDeletePostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-post <postId>",
		Short: "Delete a reported post and resolve its reports",
		Args:  cobra.ExactArgs(1),
	}
	author := cmd.Flags().String("author", "", "user id of the post's author")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		res, err := a.client.DeletePost(cmd.Context(), args[0], *author)
		if err != nil {
			return err
		}
		return a.out.print(res, []string{"MESSAGE", "REPORTS RESOLVED"}, func() [][]string {
			return [][]string{{orDash(res.Message), strconv.Itoa(res.ReportsResolved)}}
		})
	}
	return cmd
}

func newBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <userId>",
		Short: "Block a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ack, err := a.client.BlockUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAck(a, ack)
		},
	}
}

func newUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <userId>",
		Short: "Unblock a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ack, err := a.client.UnblockUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAck(a, ack)
		},
	}
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage a single user account",
	}
	cmd.AddCommand(newUserRegisterCmd(), newUserUpdateCmd(), newUserDeleteCmd(), newUserStatusCmd())
	return cmd
}

// profileFlags binds the profile fields shared by register and update.
type profileFlags struct {
	firstName, lastName, email, phone  string
	country, state, city, businessType string
}

func (p *profileFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&p.firstName, "first-name", "", "first name")
	fs.StringVar(&p.lastName, "last-name", "", "last name")
	fs.StringVar(&p.email, "email", "", "email address")
	fs.StringVar(&p.phone, "phone", "", "phone number")
	fs.StringVar(&p.country, "country", "", "country")
	fs.StringVar(&p.state, "state", "", "state or region")
	fs.StringVar(&p.city, "city", "", "city")
	fs.StringVar(&p.businessType, "business-category", "", "business category")
}

// update returns only the fields whose flags were set.
func (p *profileFlags) update(fs *pflag.FlagSet) admin.UserUpdate {
	var u admin.UserUpdate
	set := func(name string, dst **string, v string) {
		if fs.Changed(name) {
			*dst = &v
		}
	}
	set("first-name", &u.FirstName, p.firstName)
	set("last-name", &u.LastName, p.lastName)
	set("email", &u.Email, p.email)
	set("phone", &u.Phone, p.phone)
	set("country", &u.Country, p.country)
	set("state", &u.State, p.state)
	set("city", &u.City, p.city)
	set("business-category", &u.BusinessCategory, p.businessType)
	return u
}

func newUserRegisterCmd() *cobra.Command {
	var profile profileFlags
	var password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			res, err := a.client.RegisterUser(cmd.Context(), admin.NewUser{
				FirstName:        profile.firstName,
				LastName:         profile.lastName,
				Email:            profile.email,
				Password:         password,
				Phone:            profile.phone,
				Country:          profile.country,
				State:            profile.state,
				City:             profile.city,
				BusinessCategory: profile.businessType,
			})
			if err != nil {
				return err
			}
			return a.out.print(res, []string{"ID", "EMAIL", "EMAIL SENT", "MESSAGE"}, func() [][]string {
				return [][]string{{res.User.Key(), res.User.Email, strconv.FormatBool(res.EmailSent), orDash(res.Message)}}
			})
		},
	}
	profile.bind(cmd.Flags())
	cmd.Flags().StringVar(&password, "password", "", "initial password (generated by the server if empty)")
	return cmd
}

func newUserUpdateCmd() *cobra.Command {
	var profile profileFlags
	cmd := &cobra.Command{
		Use:   "update <userId>",
		Short: "Update profile fields of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := profile.update(cmd.Flags())
			if u == (admin.UserUpdate{}) {
				return fmt.Errorf("nothing to update: set at least one profile flag")
			}
			a := appFrom(cmd)
			ack, err := a.client.UpdateUser(cmd.Context(), args[0], u)
			if err != nil {
				return err
			}
			return printAck(a, ack)
		},
	}
	profile.bind(cmd.Flags())
	return cmd
}

func newUserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <userId>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ack, err := a.client.DeleteUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAck(a, ack)
		},
	}
}

func newUserStatusCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "status <userId>",
		Short: "Activate or deactivate a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("active") {
				return fmt.Errorf("--active is required")
			}
			a := appFrom(cmd)
			ack, err := a.client.SetUserActive(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			return printAck(a, ack)
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "true to activate, false to deactivate")
	return cmd
}
