package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	TableUsers        = "pk_users"
	TableCategories   = "pk_categories"
	TableLevels       = "pk_levels"
	TableQuestions    = "pk_questions"
	TableAttempts     = "pk_quiz_attempts"
	TableAttemptItems = "pk_attempt_items"
	TableLeaderboard  = "pk_leaderboard"
	TableLLMEvents    = "pk_llm_events"
)

func uuidKey() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeUUID}
}

func col(name string, t field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: t}
}

func nullable(name string, t field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: t, Nullable: true}
}

// Tables returns the table definitions in dependency order.
func Tables() []*schema.Table {
	users := schema.NewTable(TableUsers).
		AddPrimary(uuidKey()).
		AddColumn(col("name", field.TypeString)).
		AddColumn(col("agency", field.TypeString)).
		AddColumn(col("function", field.TypeString)).
		AddColumn(col("created_at", field.TypeTime))

	categories := schema.NewTable(TableCategories).
		AddPrimary(uuidKey()).
		AddColumn(&schema.Column{Name: "slug", Type: field.TypeString, Unique: true}).
		AddColumn(col("label", field.TypeString))

	levels := schema.NewTable(TableLevels).
		AddPrimary(uuidKey()).
		AddColumn(&schema.Column{Name: "slug", Type: field.TypeString, Unique: true}).
		AddColumn(col("label", field.TypeString))

	questions := schema.NewTable(TableQuestions).
		AddPrimary(uuidKey()).
		AddColumn(col("created_at", field.TypeTime)).
		AddColumn(nullable("category_slug", field.TypeString)).
		AddColumn(nullable("level_slug", field.TypeString)).
		AddColumn(col("question", field.TypeString)).
		AddColumn(col("choices", field.TypeJSON)).
		AddColumn(col("correct_index", field.TypeInt)).
		AddColumn(nullable("topic_cluster", field.TypeString)).
		AddColumn(nullable("rationale", field.TypeString)).
		AddColumn(nullable("hash_hint", field.TypeString)).
		AddIndex("pk_questions_pair_created", false, []string{"category_slug", "level_slug", "created_at"}).
		AddIndex("pk_questions_pair_hash", true, []string{"category_slug", "level_slug", "hash_hint"})

	attempts := schema.NewTable(TableAttempts).
		AddPrimary(uuidKey()).
		AddColumn(col("created_at", field.TypeTime)).
		AddColumn(col("user_id", field.TypeUUID)).
		AddColumn(nullable("category_slug", field.TypeString)).
		AddColumn(nullable("level_slug", field.TypeString)).
		AddColumn(col("total_score", field.TypeInt)).
		AddColumn(col("duration_seconds", field.TypeFloat64)).
		AddColumn(col("question_count", field.TypeInt)).
		AddColumn(nullable("question_ids", field.TypeJSON)).
		AddColumn(nullable("submitted_at", field.TypeTime)).
		AddIndex("pk_quiz_attempts_user_created", false, []string{"user_id", "created_at"})

	itemAttempt := col("attempt_id", field.TypeUUID)
	items := schema.NewTable(TableAttemptItems).
		AddPrimary(uuidKey()).
		AddColumn(itemAttempt).
		AddColumn(nullable("question_id", field.TypeUUID)).
		AddColumn(col("position", field.TypeInt)).
		AddColumn(nullable("user_answer_index", field.TypeInt)).
		AddColumn(col("correct", field.TypeBool)).
		AddColumn(col("time_taken_seconds", field.TypeFloat64)).
		AddColumn(col("score_delta", field.TypeInt)).
		AddIndex("pk_attempt_items_attempt", false, []string{"attempt_id", "position"})
	items.AddForeignKey(&schema.ForeignKey{
		Symbol:     "pk_attempt_items_attempt_fk",
		Columns:    []*schema.Column{itemAttempt},
		RefTable:   attempts,
		RefColumns: []*schema.Column{attempts.PrimaryKey[0]},
		OnDelete:   schema.Cascade,
	})

	leaderboard := schema.NewTable(TableLeaderboard).
		AddPrimary(uuidKey()).
		AddColumn(col("user_id", field.TypeUUID)).
		AddColumn(col("agency", field.TypeString)).
		AddColumn(nullable("category_slug", field.TypeString)).
		AddColumn(nullable("level_slug", field.TypeString)).
		AddColumn(col("score", field.TypeInt)).
		AddColumn(col("occurred_at", field.TypeTime)).
		AddIndex("pk_leaderboard_occurred", false, []string{"occurred_at"})

	events := schema.NewTable(TableLLMEvents).
		AddPrimary(&schema.Column{Name: "id", Type: field.TypeInt, Increment: true}).
		AddColumn(col("created_at", field.TypeTime)).
		AddColumn(col("provider", field.TypeString)).
		AddColumn(col("model", field.TypeString)).
		AddColumn(col("purpose", field.TypeString)).
		AddColumn(col("input_tokens", field.TypeInt)).
		AddColumn(col("output_tokens", field.TypeInt)).
		AddColumn(col("latency_ms", field.TypeInt64)).
		AddColumn(col("success", field.TypeBool)).
		AddColumn(col("error_message", field.TypeString)).
		AddColumn(col("request_body", field.TypeString)).
		AddColumn(col("response_body", field.TypeString)).
		AddIndex("pk_llm_events_purpose", false, []string{"purpose"})

	return []*schema.Table{users, categories, levels, questions, attempts, items, leaderboard, events}
}

// Migrate creates or updates all tables.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables()...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
