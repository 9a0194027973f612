// Command careerflow is an interactive console for the career-guidance
// turn-processing engine. It wires a session store, the hybrid retriever
// and an optional OpenAI synthesis backend from environment variables and
// processes one turn per input line.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"

	"github.com/navigator-ai/careerflow/agent"
	"github.com/navigator-ai/careerflow/config"
	"github.com/navigator-ai/careerflow/log"
	"github.com/navigator-ai/careerflow/metrics"
	"github.com/navigator-ai/careerflow/retrieval"
	"github.com/navigator-ai/careerflow/session"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noteStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config")
	sessionID := flag.String("session", "", "session id, random when empty")
	name := flag.String("name", "", "user name for the profile")
	role := flag.String("role", "", "user role for the profile")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	level := log.LevelInfo
	if *debug {
		level = log.LevelDebug
	}
	logger := log.New(level)
	log.SetDefault(logger)

	if err := run(*configPath, *sessionID, agent.Profile{Name: *name, Role: *role}, logger); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(configPath, sessionID string, profile agent.Profile, logger log.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}

	retriever, err := buildRetriever(cfg, logger)
	if err != nil {
		return err
	}

	var completer agent.Completer
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			completer = agent.NewOpenAICompleterWithBaseURL(key, baseURL, cfg.LLM)
		} else {
			completer = agent.NewOpenAICompleter(key, cfg.LLM)
		}
	} else {
		logger.Warnf("OPENAI_API_KEY not set, running with retrieval-only answers")
	}

	engine, err := agent.NewEngine(cfg, store, retriever, completer)
	if err != nil {
		return err
	}
	engine.SetLogger(logger)

	if addr := os.Getenv("CAREERFLOW_METRICS_ADDR"); addr != "" {
		m := metrics.New(prometheus.DefaultRegisterer)
		engine.SetMetrics(m)
		go func() {
			logger.Infof("metrics listening on %s", addr)
			if serr := http.ListenAndServe(addr, promhttp.Handler()); serr != nil {
				logger.Errorf("metrics server: %v", serr)
			}
		}()
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fmt.Println(noteStyle.Render("session " + sessionID + " — empty line exits"))

	return repl(engine, sessionID, profile)
}

func repl(engine *agent.Engine, sessionID string, profile agent.Profile) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return nil
		}

		env, err := engine.ProcessTurn(context.Background(), sessionID, text, profile)
		if err != nil {
			return err
		}

		fmt.Println(answerStyle.Render(env.AnswerText))
		if env.DiagramSource != "" {
			fmt.Println(noteStyle.Render("--- diagram ---"))
			fmt.Println(env.DiagramSource)
		}
		if env.ReportRef != "" {
			fmt.Println(noteStyle.Render("report: " + env.ReportRef))
		}
		for _, msg := range env.ErrorMessages {
			fmt.Println(errorStyle.Render("! " + msg))
		}
		if env.PersistenceDegraded {
			fmt.Println(errorStyle.Render("! history could not be saved, continuity at risk"))
		}
	}
}

// buildStore picks the session backend from the environment: Redis, then
// Postgres, then SQLite, then process memory.
func buildStore(cfg config.Config, logger log.Logger) (session.Store, error) {
	if addr := os.Getenv("CAREERFLOW_REDIS_ADDR"); addr != "" {
		logger.Infof("sessions in redis at %s", addr)
		return session.NewRedisStore(session.RedisOptions{
			Addr:     addr,
			Password: os.Getenv("CAREERFLOW_REDIS_PASSWORD"),
			MaxTurns: cfg.Session.MaxTurns,
		}), nil
	}
	if connString := os.Getenv("CAREERFLOW_DATABASE_URL"); connString != "" {
		logger.Infof("sessions in postgres")
		return session.NewPostgresStore(context.Background(), session.PostgresOptions{
			ConnString: connString,
			MaxTurns:   cfg.Session.MaxTurns,
		})
	}
	if path := os.Getenv("CAREERFLOW_SQLITE_PATH"); path != "" {
		logger.Infof("sessions in sqlite at %s", path)
		return session.NewSQLiteStore(session.SQLiteOptions{
			Path:     path,
			MaxTurns: cfg.Session.MaxTurns,
		})
	}
	logger.Infof("sessions in process memory")
	return session.NewMemoryStore(cfg.Session.MaxTurns), nil
}

// buildRetriever assembles the hybrid retriever. Without a pgvector
// database the semantic side is served by the same demo corpus as the
// lexical side, so the console works standalone.
func buildRetriever(cfg config.Config, logger log.Logger) (agent.Retriever, error) {
	lexical := retrieval.NewMemoryLexicalIndex()
	seedDemoCorpus(lexical)

	var vector retrieval.VectorSearcher = noVectors{}
	connString := os.Getenv("CAREERFLOW_DATABASE_URL")
	apiKey := os.Getenv("OPENAI_API_KEY")
	if connString != "" && apiKey != "" {
		searcher, err := retrieval.Connect(context.Background(), connString,
			&openaiEmbedder{client: openai.NewClient(apiKey)},
			os.Getenv("CAREERFLOW_VECTOR_TABLE"))
		if err != nil {
			return nil, err
		}
		vector = searcher
		logger.Infof("semantic retrieval via pgvector")
	} else {
		logger.Infof("semantic retrieval disabled, lexical only")
	}

	hybrid := retrieval.NewHybrid(lexical, vector, cfg.Retrieval)
	hybrid.SetLogger(logger)
	return hybrid, nil
}

// noVectors satisfies VectorSearcher when no vector index is configured.
type noVectors struct{}

func (noVectors) Search(context.Context, string, string, int) ([]retrieval.Hit, error) {
	return nil, nil
}

type openaiEmbedder struct {
	client *openai.Client
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func seedDemoCorpus(idx *retrieval.MemoryLexicalIndex) {
	idx.Add("career_cases", "case-001", "Backend engineer moved into platform engineering by owning the deployment pipeline, then leading the internal developer platform team.")
	idx.Add("career_cases", "case-002", "Data analyst transitioned to machine learning engineer after a year of production model work and a distributed systems course.")
	idx.Add("career_cases", "case-003", "Senior engineer grew into staff scope by driving a cross-team reliability program instead of chasing a management track.")
	idx.Add("education_courses", "course-001", "Distributed systems fundamentals: consensus, replication, partitioning. 8 weeks.")
	idx.Add("education_courses", "course-002", "Kubernetes in production: operators, autoscaling, observability. 6 weeks.")
	idx.Add("education_courses", "course-003", "Technical leadership for senior engineers: influence, mentoring, decision records. 4 weeks.")
}
