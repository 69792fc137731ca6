package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/windfall/uwu_classroom/internal/apiclient"
	"github.com/windfall/uwu_classroom/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "classroom",
		Short:         "Classroom platform client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "backend base URL (overrides API_BASE_URL)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(newLoginCmd(flags))
	root.AddCommand(newRegisterCmd(flags))
	root.AddCommand(newLogoutCmd(flags))
	root.AddCommand(newWhoamiCmd(flags))
	root.AddCommand(newClassroomsCmd(flags))
	root.AddCommand(newProgramsCmd(flags))
	root.AddCommand(newAssignmentsCmd(flags))
	root.AddCommand(newStaffCmd(flags))
	root.AddCommand(newAnalyzeCmd(flags))
	return root
}

// withApp loads the app for one command run and closes it afterwards.
func withApp(flags *rootFlags, run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), flags)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}

func newLoginCmd(flags *rootFlags) *cobra.Command {
	login := &cobra.Command{Use: "login", Short: "Sign in and remember the session"}

	var email, password string
	teacher := &cobra.Command{
		Use:   "teacher",
		Short: "Sign in as a teacher",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			resp, err := a.api.TeacherLogin(cmd.Context(), apiclient.TeacherLoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			return printSignedIn(cmd.OutOrStdout(), resp)
		}),
	}
	student := &cobra.Command{
		Use:   "student",
		Short: "Sign in as a student (password defaults to the birthdate, YYYY-MM-DD)",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			resp, err := a.api.StudentLogin(cmd.Context(), apiclient.StudentLoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			return printSignedIn(cmd.OutOrStdout(), resp)
		}),
	}
	for _, c := range []*cobra.Command{teacher, student} {
		c.Flags().StringVar(&email, "email", "", "account email")
		c.Flags().StringVar(&password, "password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}

	login.AddCommand(teacher, student)
	return login
}

func newRegisterCmd(flags *rootFlags) *cobra.Command {
	var in apiclient.TeacherRegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a teacher account and sign in",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			resp, err := a.api.TeacherRegister(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printSignedIn(cmd.OutOrStdout(), resp)
		}),
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number (optional)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.api.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func newWhoamiCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			if !a.api.IsAuthenticated() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			user, err := a.api.CurrentUser()
			if err != nil {
				return err
			}
			if user == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed in (no cached user)")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id: %d\nemail: %s\nname: %s\nrole: %s\n", user.ID, user.Email, user.Name, user.Role)
			return nil
		}),
	}
}

func newClassroomsCmd(flags *rootFlags) *cobra.Command {
	classrooms := &cobra.Command{Use: "classrooms", Short: "Manage classrooms"}

	classrooms.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your classrooms",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			if err := requireAuth(a); err != nil {
				return err
			}
			rooms, err := a.api.ListClassrooms(cmd.Context())
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no classrooms")
				return nil
			}
			for _, r := range rooms {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d students\n", r.ID, r.Name, r.Level, r.StudentCount)
			}
			return nil
		}),
	})

	classrooms.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show a classroom",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			room, err := a.api.GetClassroom(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), room)
		}),
	})

	var in apiclient.ClassroomInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a classroom",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			room, err := a.api.CreateClassroom(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created classroom %d (%s)\n", room.ID, room.Name)
			return nil
		}),
	}
	create.Flags().StringVar(&in.Name, "name", "", "classroom name")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().StringVar(&in.Level, "level", "", "level, e.g. A1")
	_ = create.MarkFlagRequired("name")
	classrooms.AddCommand(create)

	classrooms.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a classroom",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.api.DeleteClassroom(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted classroom %d\n", id)
			return nil
		}),
	})

	return classrooms
}

func newProgramsCmd(flags *rootFlags) *cobra.Command {
	programs := &cobra.Command{Use: "programs", Short: "Browse programs"}
	programs.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your programs",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			list, err := a.api.ListPrograms(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no programs")
				return nil
			}
			for _, p := range list {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d lessons\n", p.ID, p.Name, p.Level, len(p.Lessons))
			}
			return nil
		}),
	})
	return programs
}

func newAssignmentsCmd(flags *rootFlags) *cobra.Command {
	assignments := &cobra.Command{Use: "assignments", Short: "Browse assignments"}

	var classroomID int
	list := &cobra.Command{
		Use:   "list",
		Short: "List a classroom's assignments, or your own as a student",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			out := cmd.OutOrStdout()
			if classroomID == 0 {
				mine, err := a.api.ListStudentAssignments(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range mine {
					_, _ = fmt.Fprintf(out, "%d\t%s\t%s\n", s.ID, s.Title, s.Status)
				}
				return nil
			}
			list, err := a.api.ListAssignments(cmd.Context(), classroomID)
			if err != nil {
				return err
			}
			for _, as := range list {
				due := "-"
				if as.DueDate != nil {
					due = as.DueDate.Format("2006-01-02")
				}
				_, _ = fmt.Fprintf(out, "%d\t%s\tdue %s\t%s\n", as.ID, as.Title, due, as.Status)
			}
			return nil
		}),
	}
	list.Flags().IntVar(&classroomID, "classroom", 0, "classroom id (teachers)")
	assignments.AddCommand(list)
	return assignments
}

func newStaffCmd(flags *rootFlags) *cobra.Command {
	staff := &cobra.Command{Use: "staff", Short: "Organization staff"}

	var orgID int
	list := &cobra.Command{
		Use:   "list --org <id>",
		Short: "List an organization's staff",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			members, err := a.api.ListStaff(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			for _, m := range members {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", m.ID, m.Email, m.Role, m.Status)
			}
			return nil
		}),
	}
	list.Flags().IntVar(&orgID, "org", 0, "organization id")
	_ = list.MarkFlagRequired("org")
	staff.AddCommand(list)
	return staff
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var req service.AnalysisRequest
	cmd := &cobra.Command{
		Use:   "analyze --audio <ref> --text <reference text>",
		Short: "Score a recording and save it to the backend",
		Long: "Score a recording against the reference text. --audio accepts a local path, file://, " +
			"http(s)://, r2://bucket/key or gs://bucket/object. Without --preview the recording and " +
			"its analysis are saved to the student's progress record.",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			if !req.PreviewMode {
				if err := requireAuth(a); err != nil {
					return err
				}
			}
			res := a.analysis.AnalyzeAndUpload(cmd.Context(), req)
			if res == nil {
				return fmt.Errorf("no analysis available")
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	cmd.Flags().StringVar(&req.BlobURL, "audio", "", "recording reference")
	cmd.Flags().StringVar(&req.ReferenceText, "text", "", "text the speaker was reading")
	cmd.Flags().IntVar(&req.AssignmentID, "assignment", 0, "assignment id")
	cmd.Flags().IntVar(&req.ContentItemID, "content-item", 0, "content item id (needed to create a progress record)")
	cmd.Flags().IntVar(&req.ProgressID, "progress", 0, "existing progress record id")
	cmd.Flags().BoolVar(&req.PreviewMode, "preview", false, "score only, do not save")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printSignedIn(w io.Writer, resp *apiclient.AuthResponse) error {
	user, err := resp.DecodeUser()
	if err != nil || user == nil {
		_, _ = fmt.Fprintln(w, "signed in")
		return nil
	}
	_, _ = fmt.Fprintf(w, "signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
