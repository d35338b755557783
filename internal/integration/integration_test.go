package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"formbuilder-service/internal/app"
	"formbuilder-service/internal/domain"
	pgstore "formbuilder-service/internal/infra/postgres"
	pgmigrations "formbuilder-service/internal/infra/postgres/migrations"
	infraredis "formbuilder-service/internal/infra/redis"
	"formbuilder-service/internal/scoring"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSubmitResponseEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	forms := pgstore.NewFormStore(pool)
	responses := pgstore.NewResponseStore(pool)
	service := app.NewFormService(forms, responses,
		infraredis.NewFillSessionStore(redisClient, 5*time.Minute),
		app.WithCache(infraredis.NewFormCache(redisClient, forms, 5*time.Minute)),
	)

	form, err := service.CreateForm(ctx, sampleForm())
	if err != nil {
		t.Fatalf("create form: %v", err)
	}
	if _, err := service.PublishForm(ctx, form.ID); err != nil {
		t.Fatalf("publish form: %v", err)
	}

	_, session, err := service.StartFill(ctx, form.ID)
	if err != nil {
		t.Fatalf("start fill: %v", err)
	}
	resp, err := service.SubmitResponse(ctx, app.SubmitRequest{
		FormID:    form.ID,
		SessionID: session.ID,
		Answers:   rawAnswers(t, `[{"questionId":"fill","questionType":"cloze","blanks":["Quick"]}]`),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.TotalScore != 1 || resp.MaxScore != 11 {
		t.Fatalf("expected 1/11, got %v/%v", resp.TotalScore, resp.MaxScore)
	}

	stored, err := responses.GetResponse(ctx, resp.ID)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if len(stored.Answers) != 1 || !stored.Answers[0].IsCorrect {
		t.Fatalf("unexpected stored answers %+v", stored.Answers)
	}

	graded, err := service.GradeResponse(ctx, resp.ID, domain.ManualGrade{Score: 5, GradedBy: "teacher"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if graded.ManualScore == nil || *graded.ManualScore != 5 || graded.TotalScore != 1 {
		t.Fatalf("unexpected graded response %+v", graded)
	}

	got, err := service.GetForm(ctx, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if got.Analytics.TotalViews != 1 || got.Analytics.TotalSubmissions != 1 {
		t.Fatalf("unexpected analytics %+v", got.Analytics)
	}

	if _, err := forms.GetForm(ctx, "missing"); !errors.Is(err, domain.ErrFormNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentSubmissionsAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	forms := pgstore.NewFormStore(pool)
	form := domain.Form{ID: "form-1", Title: "Load", Status: domain.StatusPublished, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := forms.CreateForm(ctx, form); err != nil {
		t.Fatalf("create form: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			score := 10.0
			if i%2 == 1 {
				score = 20
			}
			if err := forms.IncrementSubmissions(ctx, form.ID, 60, score); err != nil {
				t.Errorf("increment: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := forms.GetForm(ctx, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if got.Analytics.TotalSubmissions != 40 {
		t.Fatalf("lost submissions: %d", got.Analytics.TotalSubmissions)
	}
	if diff := got.Analytics.AverageScore - 15; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected average 15, got %v", got.Analytics.AverageScore)
	}
	if got.Analytics.AverageCompletionTime != 60 {
		t.Fatalf("expected average time 60, got %v", got.Analytics.AverageCompletionTime)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "forms", "POSTGRES_PASSWORD": "formspass", "POSTGRES_DB": "formsdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://forms:formspass@%s:%s/formsdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleForm() app.FormInput {
	return app.FormInput{
		Title: "Integration",
		Questions: []domain.Question{
			{ID: "fill", Type: domain.QuestionCloze, Text: "Fill", Sentence: "The [quick] fox."},
			{ID: "read", Type: domain.QuestionComprehension, Text: "Read", SubQuestions: []domain.SubQuestion{
				{ID: "s1", Type: "multiple-choice", Options: []string{"A", "B"}, CorrectAnswer: "B", Points: 10},
			}},
		},
	}
}

func rawAnswers(t *testing.T, raw string) []scoring.RawAnswer {
	t.Helper()
	var out []scoring.RawAnswer
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode answers: %v", err)
	}
	return out
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
