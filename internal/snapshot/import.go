package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

type taskAction int

const (
	actionCreate taskAction = iota
	actionUpdate
	actionSkip
)

type plannedTask struct {
	task   *core.Task
	action taskAction
}

type plannedDay struct {
	date      time.Time
	tasks     []plannedTask
	messages  []core.ChatMessage
	clearChat bool
	skipChat  bool
}

type importPlan struct {
	userID  string
	days    []plannedDay
	profile *core.UserProfile
}

// Import restores an archive into stores. Conflicts are resolved by
// opts.ConflictPolicy; with ConflictFail nothing is written when any record
// already exists. DryRun reports what would happen without writing.
func Import(ctx context.Context, stores Stores, opts ImportOptions) (*ImportReport, error) {
	if stores.Tasks == nil || stores.Chats == nil {
		return nil, core.ErrConfig("NO_STORE", "import needs task and chat stores")
	}
	policy, err := normalizePolicy(opts.ConflictPolicy)
	if err != nil {
		return nil, err
	}

	manifest, files, err := loadArchive(opts.InputPath)
	if err != nil {
		return nil, err
	}
	userID := opts.UserID
	if userID == "" {
		userID = manifest.UserID
	}
	if userID == "" {
		return nil, core.ErrValidation(core.CodeInvalidInput, "snapshot has no user and none was given")
	}

	report := &ImportReport{UserID: userID, DryRun: opts.DryRun}
	plan, err := buildPlan(ctx, stores, manifest, files, userID, policy, report)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return report, nil
	}
	if err := applyPlan(ctx, stores, plan); err != nil {
		return nil, err
	}
	return report, nil
}

func normalizePolicy(p ConflictPolicy) (ConflictPolicy, error) {
	switch p {
	case "":
		return ConflictSkip, nil
	case ConflictSkip, ConflictOverwrite, ConflictFail:
		return p, nil
	default:
		return "", core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("unknown conflict policy %q", p))
	}
}

func buildPlan(
	ctx context.Context,
	stores Stores,
	manifest *Manifest,
	files map[string]archivedFile,
	userID string,
	policy ConflictPolicy,
	report *ImportReport,
) (*importPlan, error) {
	plan := &importPlan{userID: userID}

	for _, day := range manifest.Days {
		date, err := time.Parse(core.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("snapshot day %q: %w", day, err)
		}
		pd := plannedDay{date: date}

		var tasks []*core.Task
		if err := decodeEntry(files, dayArchivePath(day, tasksFileName), &tasks); err != nil {
			return nil, err
		}
		for _, task := range tasks {
			if task == nil || task.ID == "" {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: dropped a task without id", day))
				continue
			}
			task.UserID = userID
			task.Date = day
			action, err := resolveTask(ctx, stores.Tasks, task, policy)
			if err != nil {
				return nil, err
			}
			switch action {
			case actionCreate:
				report.TasksCreated++
			case actionUpdate:
				report.TasksUpdated++
			case actionSkip:
				report.TasksSkipped++
			}
			pd.tasks = append(pd.tasks, plannedTask{task: task, action: action})
		}

		if _, ok := files[dayArchivePath(day, chatFileName)]; ok {
			if err := decodeEntry(files, dayArchivePath(day, chatFileName), &pd.messages); err != nil {
				return nil, err
			}
		}
		if len(pd.messages) > 0 {
			existing, err := stores.Chats.ListMessages(ctx, userID, date)
			if err != nil {
				return nil, fmt.Errorf("listing messages for %s: %w", day, err)
			}
			switch {
			case len(existing) == 0:
				report.ChatDaysRestored++
			case policy == ConflictFail:
				return nil, core.ErrState("SNAPSHOT_CONFLICT", fmt.Sprintf("chat history for %s already exists", day))
			case policy == ConflictOverwrite:
				pd.clearChat = true
				report.ChatDaysRestored++
			default:
				pd.skipChat = true
				report.ChatDaysSkipped++
			}
		}
		plan.days = append(plan.days, pd)
	}

	if manifest.ProfilePresent {
		if err := planProfile(ctx, stores.Profiles, files, userID, policy, plan, report); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func resolveTask(ctx context.Context, tasks core.TaskStore, task *core.Task, policy ConflictPolicy) (taskAction, error) {
	_, err := tasks.GetTask(ctx, task.ID)
	if core.IsCategory(err, core.ErrCatNotFound) {
		return actionCreate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up task %s: %w", task.ID, err)
	}
	switch policy {
	case ConflictFail:
		return 0, core.ErrState("SNAPSHOT_CONFLICT", fmt.Sprintf("task %s already exists", task.ID))
	case ConflictOverwrite:
		return actionUpdate, nil
	default:
		return actionSkip, nil
	}
}

func planProfile(
	ctx context.Context,
	profiles core.ProfileStore,
	files map[string]archivedFile,
	userID string,
	policy ConflictPolicy,
	plan *importPlan,
	report *ImportReport,
) error {
	if profiles == nil {
		report.Warnings = append(report.Warnings, "no profile store configured; profile not restored")
		return nil
	}
	var p core.UserProfile
	if err := decodeEntry(files, profileArchivePath, &p); err != nil {
		return err
	}
	p.UserID = userID

	_, err := profiles.GetProfile(ctx, userID)
	switch {
	case core.IsCategory(err, core.ErrCatNotFound):
	case err != nil:
		return fmt.Errorf("reading profile: %w", err)
	case policy == ConflictFail:
		return core.ErrState("SNAPSHOT_CONFLICT", fmt.Sprintf("profile for %s already exists", userID))
	case policy == ConflictSkip:
		return nil
	}
	plan.profile = &p
	report.ProfileRestored = true
	return nil
}

func applyPlan(ctx context.Context, stores Stores, plan *importPlan) error {
	for _, day := range plan.days {
		for _, pt := range day.tasks {
			var err error
			switch pt.action {
			case actionCreate:
				err = stores.Tasks.CreateTask(ctx, pt.task)
			case actionUpdate:
				err = stores.Tasks.UpdateTask(ctx, pt.task)
			}
			if err != nil {
				return fmt.Errorf("restoring task %s: %w", pt.task.ID, err)
			}
		}

		if len(day.messages) == 0 || day.skipChat {
			continue
		}
		if day.clearChat {
			if err := stores.Chats.ClearMessages(ctx, plan.userID, day.date); err != nil {
				return fmt.Errorf("clearing chat for %s: %w", core.DateKey(day.date), err)
			}
		}
		for _, msg := range day.messages {
			if err := stores.Chats.AppendMessage(ctx, plan.userID, day.date, msg); err != nil {
				return fmt.Errorf("restoring chat for %s: %w", core.DateKey(day.date), err)
			}
		}
	}

	if plan.profile != nil {
		if err := stores.Profiles.UpsertProfile(ctx, plan.profile); err != nil {
			return fmt.Errorf("restoring profile: %w", err)
		}
	}
	return nil
}

func decodeEntry(files map[string]archivedFile, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("snapshot is missing %s", name)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
