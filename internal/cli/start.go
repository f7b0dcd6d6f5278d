package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/config"
	"classroom-assessment-service/internal/domain"
	"classroom-assessment-service/internal/infra/memory"
	"classroom-assessment-service/internal/infra/postgres"
	rediscache "classroom-assessment-service/internal/infra/redis"
	transport "classroom-assessment-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type repositories struct {
	assessments app.AssessmentRepository
	attempts    app.AttemptRepository
	directory   app.Directory
	loader      memory.QuestionLoader
	close       func()
}

// resolvePort prefers the --port flag (or PORT), then server.port, then 8080.
func resolvePort(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	return "8080"
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		log.Printf("auth.secret is empty; tokens are signed with an empty key")
	}

	finalPort := resolvePort(portFlag, cfg)

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionBank
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		questions = rediscache.NewQuestionCache(redisClient, repos.loader, questionTTL)
	} else {
		questions = memory.NewQuestionCache(repos.loader, questionTTL)
	}

	service := app.NewService(repos.assessments, repos.attempts, questions, repos.directory,
		app.WithRevealCorrectness(cfg.Attempt.RevealCorrectness))
	auth := transport.NewAuthenticator(cfg.Auth.Secret)
	wsHandler := transport.NewWSHandler(service, config.Duration(cfg.Monitor.Interval, 5*time.Second))
	handler := transport.NewHandler(service, auth, wsHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRepositories uses Postgres when configured and a seeded in-memory store otherwise.
func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.Postgres.URL == "" {
		store := memory.NewStore()
		seedSample(store)
		log.Printf("postgres url not configured; using in-memory store with sample data")
		return repositories{
			assessments: store,
			attempts:    store,
			directory:   store,
			loader:      store,
			close:       func() {},
		}, nil
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return repositories{}, err
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		db.Close()
		return repositories{}, err
	}
	store := postgres.NewStore(db)
	return repositories{
		assessments: store,
		attempts:    store,
		directory:   store,
		loader:      postgres.NewQuestionLoader(pool),
		close: func() {
			pool.Close()
			db.Close()
		},
	}, nil
}

// seedSample provides one classroom to try the API against without a database.
func seedSample(store *memory.Store) {
	now := time.Now().UTC()
	store.AddUser(domain.User{ID: "teacher-1", Name: "Demo Teacher", Role: domain.RoleTeacher})
	store.AddUser(domain.User{ID: "student-1", Name: "Demo Student", Role: domain.RoleStudent})
	store.AddUser(domain.User{ID: "student-2", Name: "Second Student", Role: domain.RoleStudent})
	store.AddClassroom(domain.Classroom{ID: "classroom-1", Name: "Demo Class", TeacherID: "teacher-1"}, "student-1", "student-2")
	store.AddQuestion(domain.Question{
		ID:            "question-1",
		Prompt:        "What is 2 + 2?",
		Options:       []string{"3", "4", "5"},
		CorrectOption: "4",
		Topic:         "Arithmetic",
		Difficulty:    "Easy",
		AuthorID:      "teacher-1",
		CreatedAt:     now,
	})
	store.AddQuestion(domain.Question{
		ID:            "question-2",
		Prompt:        "Which planet is closest to the sun?",
		Options:       []string{"Venus", "Mercury", "Mars"},
		CorrectOption: "Mercury",
		Topic:         "Science",
		Difficulty:    "Medium",
		AuthorID:      "teacher-1",
		CreatedAt:     now,
	})
}
