package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cutroom/internal/config"
	"cutroom/internal/db"
	"cutroom/internal/domain"
	"cutroom/internal/engine"
	"cutroom/internal/migrate"
	"cutroom/internal/repo"
	"cutroom/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cutroom",
	Short: "Cutroom CLI",
	Long: `Cutroom runs a video editing agency: clients open projects, admins staff
them with editors and QC reviewers, and finished cuts go through QC and
client review before they count as done.
- Workspace: your .cutroom directory holding the database; platform config
  lives in cutroom.yml and can be imported into the DB.
- Project: one edit job with a lifecycle (pending -> assigned -> in_progress
  -> qc_review -> client_review -> completed) plus cancelled and rejected exits.
- Revisions: change requests from the client during client_review; each plan
  caps how many completed revisions a project gets.
- Plans: basic, monthly-pass, premium, ultimate decide revision caps and
  turnaround; the cap is frozen on the project at creation.
- Notifications: in-app messages for assignments, reviews, and verdicts.
- Activity log: diary of everything that happened, view with 'cutroom log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CUTROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(revisionCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- user ---

func userCmd() *cobra.Command {
	u := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Users are admins, employees (editors), qc reviewers, and clients. Clients carry a plan that decides the revision cap on their new projects.",
	}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	u.AddCommand(userShowCmd())
	u.AddCommand(userSetPlanCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "user id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Role, "role", "client", "role (admin, employee, qc, client)")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "plan for clients (defaults from config)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Plan", "Completed"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.Plan, u.CompletedProjects})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userSetPlanCmd() *cobra.Command {
	var plan string
	cmd := &cobra.Command{
		Use:   "set-plan <id>",
		Short: "Change a client's plan",
		Long:  "Changes the plan used for the client's future projects. Existing projects keep the revision cap frozen at creation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, ok := e.Config.Plans.Catalog[plan]; !ok {
					return fmt.Errorf("unknown plan %q", plan)
				}
				if err := e.Repo.SetUserPlan(ctx, args[0], plan); err != nil {
					return err
				}
				u, err := e.Repo.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan name")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

// --- project ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "Projects move pending -> assigned -> in_progress -> qc_review -> client_review -> completed, with cancelled and rejected as exits. Only adjacent moves are allowed.",
	}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectEditCmd())
	prj.AddCommand(projectAssignCmd())
	prj.AddCommand(projectStatusCmd())
	prj.AddCommand(projectReviewCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				if opts.ClientID == "" && actor.Role == "client" {
					opts.ClientID = actor.ID
				}
				p, err := e.CreateProject(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "client id (defaults to actor for clients)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "medium", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Client", "Editor", "Progress", "Revisions"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Status, p.ClientID, deref(p.AssignedEditorID), fmt.Sprintf("%d%%", p.Progress), revisionCap(p.MaxRevisions)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client filter")
	cmd.Flags().StringVar(&f.EditorID, "editor", "", "editor filter")
	cmd.Flags().StringVar(&f.QCID, "qc", "", "qc reviewer filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max results")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectEditCmd() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit title and description",
		Long:  "Clients may edit while the project is still pending; admins at any time.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.UpdateProjectOptions{ProjectID: args[0]}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				p, err := e.UpdateProject(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func projectAssignCmd() *cobra.Command {
	var opts engine.AssignOptions
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign an editor (and optionally a QC reviewer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				p, err := e.AssignProject(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.EditorID, "editor", "", "editor user id")
	cmd.Flags().StringVar(&opts.QCID, "qc", "", "qc reviewer user id")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "bump priority while staffing")
	_ = cmd.MarkFlagRequired("editor")
	return cmd
}

func projectStatusCmd() *cobra.Command {
	var opts engine.StatusUpdateOptions
	var progress int
	var notes string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Move a project through its lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			if cmd.Flags().Changed("progress") {
				opts.Progress = &progress
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				p, err := e.UpdateStatus(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "target status")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percent (clamped to 0-100)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func projectReviewCmd() *cobra.Command {
	var opts engine.ReviewOptions
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or reject a project in client_review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				p, err := e.Review(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Action, "action", "", "approve or reject")
	cmd.Flags().StringVar(&opts.Feedback, "feedback", "", "feedback (required for reject)")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

// --- revision ---

func revisionCmd() *cobra.Command {
	rev := &cobra.Command{
		Use:   "revision",
		Short: "Manage revision requests",
		Long:  "Revisions are client change requests filed during client_review. The project goes back to in_progress and the plan cap counts completed revisions.",
	}
	rev.AddCommand(revisionRequestCmd())
	rev.AddCommand(revisionListCmd())
	rev.AddCommand(revisionResolveCmd())
	return rev
}

func revisionRequestCmd() *cobra.Command {
	var opts engine.RevisionRequestOptions
	var timestamp float64
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("timestamp") {
				opts.TimestampSeconds = &timestamp
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				r, err := e.RequestRevision(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what should change")
	cmd.Flags().StringVar(&opts.Priority, "priority", "medium", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category (audio, color, pacing, ...)")
	cmd.Flags().Float64Var(&timestamp, "timestamp", 0, "timecode in the cut, seconds")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func revisionListCmd() *cobra.Command {
	var f repo.RevisionFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListRevisions(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Status", "Priority", "Requested By", "Description"})
				for _, rev := range items {
					tw.AppendRow(table.Row{rev.ID, rev.ProjectID, rev.Status, rev.Priority, rev.RequestedByID, rev.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.RequestedByID, "requested-by", "", "requester filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max results")
	return cmd
}

func revisionResolveCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a revision as completed or rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				r, err := e.ResolveRevision(ctx, args[0], status, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "completed", "completed or rejected")
	return cmd
}

// --- notifications ---

func notifyCmd() *cobra.Command {
	n := &cobra.Command{Use: "notify", Short: "In-app notifications"}
	n.AddCommand(notifyListCmd())
	n.AddCommand(notifyReadCmd())
	return n
}

func notifyListCmd() *cobra.Command {
	var f repo.NotificationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if f.UserID == "" {
					f.UserID = viper.GetString("actor-id")
				}
				items, err := r.ListNotifications(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Title", "Read", "Project"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Type, n.Title, n.Read, deref(n.ProjectID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.UserID, "user", "", "user id (defaults to actor)")
	cmd.Flags().BoolVar(&f.UnreadOnly, "unread", false, "unread only")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max results")
	return cmd
}

func notifyReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e.Repo)
				if err != nil {
					return err
				}
				return e.MarkNotificationRead(ctx, args[0], actor)
			})
		},
	}
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyDeleteCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (secret shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if userID == "" {
					userID = viper.GetString("actor-id")
				}
				if _, err := r.GetUser(ctx, userID); err != nil {
					return err
				}
				secret := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
				key := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				out := map[string]any{"id": key.ID, "user_id": key.UserID, "name": key.Name, "key": secret}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("API key %s created for %s\n", key.ID, key.UserID)
				fmt.Printf("Secret (save it now, it is not stored): %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to actor)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if userID == "" {
					userID = viper.GetString("actor-id")
				}
				keys, err := r.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to actor)")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- activity log ---

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Activity log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var entryType, projectID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail activity entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.LatestActivity(ctx, n, projectID, entryType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Project", "Actor"})
				for _, a := range entries {
					tw.AppendRow(table.Row{a.ID, a.TS, a.Type, a.ProjectID, a.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&entryType, "type", "", "entry type filter")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	return cmd
}

// --- stats ---

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show project counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				counts, err := r.CountProjectsByStatus(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				for status, c := range counts {
					fmt.Printf("%s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect platform config",
		Long:  "Config is the rulebook: plan catalog with revision caps, notification toggle, auth settings, and webhook endpoints. Stored in cutroom.yml and importable into the DB.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default cutroom.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import config YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertPlatformConfig(ctx, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := resolveConfig(cmd.Context(), r, workspace)
			if err != nil {
				return err
			}
			authCfg := server.AuthConfig{
				JWTSecret:              cfg.Auth.JWTSecret,
				AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" {
				authCfg.JWTSecret = os.Getenv("CUTROOM_JWT_SECRET")
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret (or CUTROOM_JWT_SECRET) is required for bearer auth")
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Cutroom API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := resolveConfig(ctx, repo.Repo{DB: conn}, workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

// resolveConfig prefers the config imported into the DB, then cutroom.yml in
// the workspace, then built-in defaults.
func resolveConfig(ctx context.Context, r repo.Repo, workspace string) (*config.Config, error) {
	cfg, err := r.GetPlatformConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg, err = config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	return config.Default(), nil
}

// resolveActor maps --actor-id to an acting user. Unknown actors run as
// admin: the local CLI is a trusted operator surface, unlike the HTTP API.
func resolveActor(ctx context.Context, r repo.Repo) (engine.ActingUser, error) {
	id := viper.GetString("actor-id")
	u, err := r.GetUser(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return engine.ActingUser{ID: id, Role: "admin"}, nil
	}
	if err != nil {
		return engine.ActingUser{}, err
	}
	return engine.ActingUser{ID: u.ID, Role: u.Role}, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func revisionCap(n int) string {
	if n < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}
