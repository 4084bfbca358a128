package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"remindline/internal/app"
	"remindline/internal/config"
	"remindline/internal/db"
	"remindline/internal/domain"
	"remindline/internal/engine"
	"remindline/internal/relay"
	"remindline/internal/repo"
	"remindline/internal/scheduler"
	"remindline/internal/server"
	"remindline/internal/workcal"
)

var rootCmd = &cobra.Command{
	Use:   "remindline",
	Short: "Remindline CLI",
	Long: `Remindline keeps track of tasks with deadlines and nags the right people about them.
- Tasks: one owner, a free-text description and an optional deadline written the way people say it ("через 2 часа", "завтра в 15:00").
- Reminders: fired inside the working window; a deadline that has passed is escalated to everyone above the owner.
- Hierarchy: manager links form a graph without cycles; the configured developer sees everything.
- Workspace: .remindline holds the SQLite database; remindline.yml next to it holds the config.
- Event log: every lifecycle change, view with 'remindline log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load(".env")
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("REMINDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting user id (empty acts as the system)")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/remindline.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
}

// applyOverrides lets REMINDLINE_* variables win over the config file.
func applyOverrides(cfg *config.Config) {
	if v := viper.GetString("timezone"); v != "" {
		cfg.Timezone = v
	}
	if v := viper.GetString("developer-id"); v != "" {
		cfg.Hierarchy.DeveloperID = v
	}
	if v := viper.GetString("notifier-url"); v != "" {
		cfg.Notifier.Kind = "webhook"
		cfg.Notifier.URL = v
	}
	if v := viper.GetString("notifier-token"); v != "" {
		cfg.Notifier.Token = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks go new -> in_progress -> done. Postponing moves the deadline, snoozing only moves the next reminder. A done task cannot change again.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskStartCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskPostponeCmd())
	task.AddCommand(taskSnoozeCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskEventsCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if opts.OwnerID == "" {
				opts.OwnerID = opts.ActorID
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				printTasks(e.Calendar, []domain.Task{res.Task})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner user id (defaults to --actor-id)")
	cmd.Flags().StringVar(&opts.Description, "text", "", "task description")
	cmd.Flags().StringVar(&opts.DeadlineText, "deadline", "", `deadline, e.g. "через 2 часа" or "25.12 18:00"`)
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func taskListCmd() *cobra.Command {
	var opts engine.TaskListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				printTasks(e.Calendar, tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.UserID, "user", "", "owner filter")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status filter")
	cmd.Flags().BoolVar(&opts.OpenOnly, "open", false, "only tasks that are not done")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of tasks")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

// taskAction builds the one-argument commands that only differ in the engine
// call they make.
func taskAction(use, short string, fn func(e engine.Engine, ctx context.Context, id, actor string) (domain.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := fn(e, ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				printTasks(e.Calendar, []domain.Task{t})
				return nil
			})
		},
	}
}

func taskStartCmd() *cobra.Command {
	return taskAction("start", "Mark a task in progress", engine.Engine.StartTask)
}

func taskDoneCmd() *cobra.Command {
	return taskAction("done", "Complete a task", engine.Engine.CompleteTask)
}

func taskPostponeCmd() *cobra.Command {
	var opts engine.PostponeOptions
	cmd := &cobra.Command{
		Use:   "postpone <id>",
		Short: "Move a task's deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TaskID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.PostponeTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.DeadlineText, "deadline", "", "new deadline")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "why the deadline moves")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}

func taskSnoozeCmd() *cobra.Command {
	var minutes int
	var until string
	cmd := &cobra.Command{
		Use:   "snooze <id>",
		Short: "Push the next reminder without moving the deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					t   domain.Task
					err error
				)
				switch {
				case until != "":
					t, err = e.SnoozeUntil(ctx, args[0], until, actor)
				case minutes > 0:
					t, err = e.SnoozeTask(ctx, args[0], minutes, actor)
				default:
					return errors.New("--minutes or --until is required")
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes until the next reminder (1-1440)")
	cmd.Flags().StringVar(&until, "until", "", "time of the next reminder")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set status (new, in_progress, almost_done)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetStatus(ctx, args[0], domain.Status(args[1]), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <id>",
		Short: "Show a task's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evs, err := e.TaskEvents(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evs)
				}
				printEvents(e.Calendar, evs)
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage people",
	}
	user.AddCommand(userEnsureCmd())
	user.AddCommand(userRoleCmd())
	user.AddCommand(userDeptCmd())
	user.AddCommand(userActiveCmd("deactivate", "Deactivate a user and drop their manager links", engine.Engine.DeactivateUser))
	user.AddCommand(userActiveCmd("reactivate", "Reactivate a user", engine.Engine.ReactivateUser))
	user.AddCommand(userListCmd())
	return user
}

func userEnsureCmd() *cobra.Command {
	var name, department string
	var register bool
	cmd := &cobra.Command{
		Use:   "ensure <id>",
		Short: "Create a user if missing and refresh the name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.EnsureUser(ctx, args[0], name)
				if err != nil {
					return err
				}
				if register {
					if u, err = e.Register(ctx, u.ID, name, department); err != nil {
						return err
					}
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().BoolVar(&register, "register", false, "mark the user as registered")
	return cmd
}

func userRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <id> <role>",
		Short: "Change a user's role (employee, lead, head, developer)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetRole(ctx, viper.GetString("actor-id"), args[0], domain.Role(args[1]))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func userDeptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dept <id> <department>",
		Short: "Change a user's department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetDepartment(ctx, viper.GetString("actor-id"), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func userActiveCmd(use, short string, fn func(e engine.Engine, ctx context.Context, actorID, userID string) (domain.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := fn(e, ctx, viper.GetString("actor-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func userListCmd() *cobra.Command {
	var f repo.UserFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				printUsers(users)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Role, "role", "", "role filter")
	cmd.Flags().StringVar(&f.Department, "department", "", "department filter")
	cmd.Flags().BoolVar(&f.ActiveOnly, "active", false, "only active users")
	return cmd
}

func linkCmd() *cobra.Command {
	link := &cobra.Command{
		Use:   "link",
		Short: "Manage the manager hierarchy",
	}
	link.AddCommand(&cobra.Command{
		Use:   "add <manager> <subordinate>",
		Short: "Make one user a manager of another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.LinkManager(ctx, viper.GetString("actor-id"), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	})
	link.AddCommand(&cobra.Command{
		Use:   "remove <manager> <subordinate>",
		Short: "Remove a manager link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.UnlinkManager(ctx, viper.GetString("actor-id"), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("%s no longer manages %s\n", args[0], args[1])
				return nil
			})
		},
	})
	link.AddCommand(&cobra.Command{
		Use:   "managers <user>",
		Short: "Everyone who hears about the user's overdue tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ManagersOf(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				printUsers(users)
				return nil
			})
		},
	})
	return link
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Show how a time expression is understood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				text := strings.Join(args, " ")
				at, err := e.ParseDeadline(text)
				if err != nil {
					return err
				}
				next := e.Calendar.NextReminderAfter(&at)
				return printJSONOrTable(map[string]any{
					"input":         text,
					"deadline":      at.UTC().Format(time.RFC3339),
					"local":         e.Calendar.Local(at),
					"next_reminder": e.Calendar.Local(next),
				})
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The event log is the append-only history of task changes; the relay publishes it downstream.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var kind string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evs, err := e.Repo.LatestEvents(ctx, n, kind)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evs)
				}
				printEvents(e.Calendar, evs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&kind, "kind", "", "event kind filter")
	return cmd
}

func relayCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "relay",
		Short: "Event relay",
	}
	r.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Publish pending events to every configured sink once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				rl := relay.New(env.Config, env.Engine.Repo, env.Log)
				if rl == nil {
					return errors.New("no relay sinks configured")
				}
				defer rl.Close()
				return rl.Flush(ctx)
			})
		},
	})
	return r
}

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one reminder check now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				s := scheduler.FromEngine(env.Engine, env.Config.Scheduler.DeliveryTimeout)
				return printJSONOrTable(s.Tick(ctx))
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create remindline.yml",
		Long:  "Config holds the time zone, the working window, the developer id, the notifier and relay sinks. Secrets can come from REMINDLINE_* variables or .env instead.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			applyOverrides(cfg)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": cfg.Validate() == nil})
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default remindline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Mint an API bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			applyOverrides(cfg)
			token, err := server.SignToken(cfg.Server.JWTSecret, args[0], ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}

// --- helpers ---

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		Override:   applyOverrides,
	})
	if err != nil {
		return err
	}
	defer env.Close()
	defer env.Log.Sync()
	return fn(ctx, env)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withEnv(ctx, func(ctx context.Context, env *app.Env) error {
		return fn(ctx, env.Engine)
	})
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

func printTasks(cal *workcal.Calendar, tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Owner", "Status", "Deadline", "Next reminder", "Description"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.UserID, t.Status, localOrDash(cal, t.Deadline), localOrDash(cal, t.NextReminderAt), t.Description})
	}
	tw.Render()
}

func printUsers(users []domain.User) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Role", "Department", "Active"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.FullName, u.Role, u.Department, u.Active})
	}
	tw.Render()
}

func printEvents(cal *workcal.Calendar, evs []domain.TaskEvent) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Task", "Kind", "At", "Actor", "Meta"})
	for _, ev := range evs {
		meta, _ := json.Marshal(ev.Meta)
		tw.AppendRow(table.Row{ev.ID, ev.TaskID, ev.Kind, cal.Local(ev.At), ev.ActorID, string(meta)})
	}
	tw.Render()
}

func localOrDash(cal *workcal.Calendar, t *time.Time) string {
	if t == nil {
		return "-"
	}
	return cal.Local(*t)
}
