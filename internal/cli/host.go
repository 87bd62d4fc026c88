package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-host/internal/archive"
	"quiz-session-host/internal/catalog"
	"quiz-session-host/internal/config"
	"quiz-session-host/internal/platform"
	"quiz-session-host/internal/session"
	"quiz-session-host/internal/transport/ws"
)

// NewHostCmd builds the subcommand that runs one live session end to end.
func NewHostCmd(configPath *string) *cobra.Command {
	var (
		orgID    string
		quizID   string
		hostName string
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a session for a quiz and host it from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), *configPath, orgID, quizID, hostName)
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id")
	cmd.Flags().StringVar(&hostName, "name", "", "host display name (defaults to session.host_name)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}

func runHost(ctx context.Context, configPath, orgID, quizID, hostName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if hostName == "" {
		hostName = cfg.Session.HostName
	}
	if hostName == "" {
		hostName = "host"
	}

	store, cleanup, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	api := platform.NewClient(cfg.API.BaseURL, cfg.API.Token, nil)
	quizzes := catalog.NewCache(api, config.Duration(cfg.Quiz.TTL, 10*time.Minute))

	quiz, err := quizzes.GetQuiz(ctx, orgID, quizID)
	if err != nil {
		return err
	}

	info, err := api.CreateSession(ctx, orgID, quizID)
	if err != nil {
		return err
	}
	if _, err := api.CreateHost(ctx, orgID, quizID, info.ID, hostName); err != nil {
		return err
	}

	channel := ws.NewChannel(cfg.WS.BaseURL, info.ID, hostName)
	client := session.NewClient(channel, info, quiz.QuestionsCount, session.Options{
		Countdown:         config.Duration(cfg.Session.Countdown, 3*time.Second),
		ReconnectAttempts: cfg.Session.ReconnectAttempts,
		ReconnectBackoff:  config.Duration(cfg.Session.ReconnectBackoff, 0),
		MinParticipants:   cfg.Session.MinParticipants,
	})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	log.Printf("hosting %q: session %s, join code %s", quiz.Name, info.ID, info.JoinCode)

	snapshots, cancelSub := client.Subscribe()
	defer cancelSub()

	done := make(chan error, 1)
	go watchSession(snapshots, store, quizID, done)
	go readCommands(client)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		return err
	case <-stop:
		log.Println("interrupted, ending session...")
		return client.Cancel()
	case <-ctx.Done():
		return client.Close()
	}
}

// watchSession logs stage changes and archives results when the quiz ends.
func watchSession(snapshots <-chan session.Snapshot, store archive.Archive, quizID string, done chan<- error) {
	lastStage := session.Stage("")
	for snap := range snapshots {
		if snap.Err != nil {
			done <- snap.Err
			return
		}
		if snap.Stage != lastStage {
			lastStage = snap.Stage
			log.Printf("stage: %s", snap.Stage)
		}

		switch snap.Stage {
		case session.StageLobby:
			log.Printf("participants: %d", len(snap.Participants))
		case session.StageQuestion:
			if snap.Question != nil {
				log.Printf("question %d/%d: %s (%d answered)",
					snap.QuestionIndex, snap.QuestionTotal, snap.Question.Title, len(snap.Answered))
			}
		case session.StageResults:
			for i, entry := range snap.Results {
				log.Printf("%d. %s: %d points", i+1, entry.Participant.Username, entry.TotalPoints)
			}
			record := archive.NewRecord(snap.SessionID, quizID, snap.JoinCode, snap.Results)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := store.Save(ctx, record)
			cancel()
			if err != nil {
				log.Printf("archive results: %v", err)
			}
			done <- nil
			return
		case session.StageCancelled:
			done <- nil
			return
		}
	}
	done <- nil
}

// readCommands feeds host commands from stdin into the session client.
func readCommands(client *session.Client) {
	fmt.Println("commands: start | next | finish | cancel")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var err error
		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			err = client.Start()
		case "next":
			err = client.Next()
		case "finish":
			err = client.Finish()
		case "cancel":
			err = client.Cancel()
		case "":
			continue
		default:
			fmt.Println("commands: start | next | finish | cancel")
			continue
		}
		if err != nil {
			log.Printf("command rejected: %v", err)
		}
	}
}

// buildArchive picks the configured results store: postgres when a URL is
// set, redis when an address is set, in-process memory otherwise.
func buildArchive(ctx context.Context, cfg config.Config) (archive.Archive, func(), error) {
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return archive.NewPostgresArchive(pool), pool.Close, nil
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := config.Duration(cfg.Redis.TTL, 24*time.Hour)
		return archive.NewRedisArchive(client, ttl), func() { _ = client.Close() }, nil
	}
	return archive.NewMemoryArchive(), func() {}, nil
}
