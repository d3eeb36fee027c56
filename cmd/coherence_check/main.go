package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fyp-inbox/internal/config"
	"fyp-inbox/internal/db"
	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/repository"
	"fyp-inbox/internal/service"
)

const (
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

// Scenario es un caso ejecutado contra los servicios reales sobre repos en memoria.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, env *scenarioEnv) error
}

type scenarioEnv struct {
	store         *memoryStore
	threads       *service.ThreadService
	notifications *service.NotificationService
}

func main() {
	useDB := flag.Bool("db", false, "auditar los chats de la base configurada en lugar de correr escenarios")
	limit := flag.Int("limit", 500, "maximo de chats a auditar con -db")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()

	if *useDB {
		os.Exit(auditDatabase(ctx, *limit))
	}
	os.Exit(runScenarios(ctx))
}

func newScenarioEnv() *scenarioEnv {
	store := newMemoryStore()
	directory := service.NewRepoDirectory(store)
	return &scenarioEnv{
		store:         store,
		threads:       service.NewThreadService(zap.NewNop(), chatStore{store}, messageStore{store}, directory, service.ThreadOptions{FetchLimit: 50}),
		notifications: service.NewNotificationService(zap.NewNop(), notificationStore{store}, directory, 4),
	}
}

func runScenarios(ctx context.Context) int {
	scenarios := []Scenario{
		{Name: "A: inicio concurrente del mismo par", Run: scenarioConcurrentStart},
		{Name: "B: no vistos fuera de la ventana", Run: scenarioUnseenWindow},
		{Name: "C: aviso a todos los asesores", Run: scenarioAdvisorFanout},
	}

	failed := 0
	for _, sc := range scenarios {
		fmt.Printf("%s[Escenario]%s %s\n", colorCyan, colorReset, sc.Name)
		env := newScenarioEnv()
		err := sc.Run(ctx, env)

		var findings []finding
		snaps := env.store.snapshot()
		for _, s := range snaps {
			findings = append(findings, judgeChat(s)...)
		}
		findings = append(findings, judgeDuplicates(snaps)...)

		if err != nil || len(findings) > 0 {
			failed++
			if err != nil {
				fmt.Printf("  %sFALLO%s %v\n", colorRed, colorReset, err)
			}
			for _, f := range findings {
				fmt.Printf("  %sINCOHERENCIA%s %s\n", colorRed, colorReset, f)
			}
			continue
		}
		fmt.Printf("  %sOK%s\n", colorGreen, colorReset)
	}

	fmt.Printf("\n%d/%d escenarios correctos\n", len(scenarios)-failed, len(scenarios))
	if failed > 0 {
		return 1
	}
	return 0
}

func scenarioConcurrentStart(ctx context.Context, env *scenarioEnv) error {
	env.store.addUser(domain.User{ID: "u1", DisplayName: "Ana"})
	env.store.addUser(domain.User{ID: "u2", DisplayName: "Beto"})

	var wg sync.WaitGroup
	chatIDs := make([]string, 2)
	errs := make([]error, 2)
	for i, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.threads.StartOrContinue(ctx, pair[0], []string{pair[1]}, domain.NewChatSentinel, "hola")
			chatIDs[i], errs[i] = res.Chat.ID, err
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	if chatIDs[0] != chatIDs[1] {
		return fmt.Errorf("expected one chat, got %s and %s", chatIDs[0], chatIDs[1])
	}
	msgs, err := env.threads.FetchMessages(ctx, chatIDs[0], "u1", 0)
	if err != nil {
		return err
	}
	if len(msgs) != 2 {
		return fmt.Errorf("expected 2 messages, got %d", len(msgs))
	}
	return nil
}

func scenarioUnseenWindow(ctx context.Context, env *scenarioEnv) error {
	env.store.addUser(domain.User{ID: "u1"})
	env.store.addUser(domain.User{ID: "u2"})

	res, err := env.threads.StartOrContinue(ctx, "u2", []string{"u1"}, domain.NewChatSentinel, "mensaje 1")
	if err != nil {
		return err
	}
	for i := 2; i <= 5; i++ {
		if _, err := env.threads.Append(ctx, res.Chat.ID, "u2", fmt.Sprintf("mensaje %d", i)); err != nil {
			return err
		}
	}

	msgs, err := env.threads.FetchMessages(ctx, res.Chat.ID, "u1", 1)
	if err != nil {
		return err
	}
	if len(msgs) != 5 {
		return fmt.Errorf("expected 5 unseen messages with limit 1, got %d", len(msgs))
	}
	if n, _ := env.threads.UnreadCount(ctx, res.Chat.ID, "u1"); n != 5 {
		return fmt.Errorf("expected unread 5, got %d", n)
	}
	if _, err := env.threads.MarkSeen(ctx, res.Chat.ID, "u1", nil); err != nil {
		return err
	}
	if n, _ := env.threads.UnreadCount(ctx, res.Chat.ID, "u1"); n != 0 {
		return fmt.Errorf("expected unread 0 after mark seen, got %d", n)
	}
	return nil
}

func scenarioAdvisorFanout(ctx context.Context, env *scenarioEnv) error {
	for i := 1; i <= 4; i++ {
		env.store.addUser(domain.User{ID: fmt.Sprintf("adv%d", i), Roles: domain.RoleFlags{Advisor: true}})
	}
	for i := 1; i <= 6; i++ {
		env.store.addUser(domain.User{ID: fmt.Sprintf("stu%d", i), Roles: domain.RoleFlags{Student: true}})
	}

	res, err := env.notifications.Notify(ctx, service.AnnouncementEvent("a1", "Comite de evaluacion", domain.RoleFlags{Advisor: true}, ""))
	if err != nil {
		return err
	}
	if res.Created != 4 {
		return fmt.Errorf("expected 4 notifications, got %d", res.Created)
	}
	for i := 1; i <= 6; i++ {
		if n, _ := env.notifications.UnreadCount(ctx, fmt.Sprintf("stu%d", i)); n != 0 {
			return fmt.Errorf("student stu%d should not be notified", i)
		}
	}
	return nil
}

// auditDatabase corre el juez sobre los chats mas recientes de la base.
func auditDatabase(ctx context.Context, limit int) int {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	chats := repository.NewPgChatRepository(pool)
	messages := repository.NewPgMessageRepository(pool)

	ids, err := chats.ListRecentIDs(ctx, limit)
	if err != nil {
		log.Fatalf("list chats: %v", err)
	}

	var snaps []chatSnapshot
	for _, id := range ids {
		chat, err := chats.GetByID(ctx, id)
		if err != nil {
			log.Fatalf("load chat %s: %v", id, err)
		}
		msgs, err := messages.ListByChatID(ctx, id)
		if err != nil {
			log.Fatalf("load messages %s: %v", id, err)
		}
		snaps = append(snaps, chatSnapshot{Chat: chat, Messages: msgs})
	}

	var findings []finding
	for _, s := range snaps {
		findings = append(findings, judgeChat(s)...)
	}
	findings = append(findings, judgeDuplicates(snaps)...)

	for _, f := range findings {
		fmt.Printf("%sINCOHERENCIA%s %s\n", colorRed, colorReset, f)
	}
	fmt.Printf("%d chats auditados, %d incoherencias\n", len(snaps), len(findings))
	if len(findings) > 0 {
		return 1
	}
	return 0
}
