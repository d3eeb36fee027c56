package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fyp-inbox/internal/config"
	"fyp-inbox/internal/db"
	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/realtime"
	"fyp-inbox/internal/repository"
	"fyp-inbox/internal/service"
)

// Cliente de terminal para probar el inbox contra la base real.
func main() {
	userID := flag.String("user", "", "id del usuario con el que operar")
	flag.Parse()

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	directory := service.NewRepoDirectory(repository.NewPgUserRepository(pool))

	// Con redis los mensajes enviados desde aqui llegan a los websockets de la API.
	var publisher realtime.Publisher
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		publisher = realtime.NewRedisPublisher(client)
	}

	threads := service.NewThreadService(logger,
		repository.NewPgChatRepository(pool),
		repository.NewPgMessageRepository(pool),
		directory,
		service.ThreadOptions{Publisher: publisher, FetchLimit: cfg.ChatFetchLimit, MaxFetchLimit: cfg.ChatMaxFetchLimit},
	)
	notifications := service.NewNotificationService(logger, repository.NewPgNotificationRepository(pool), directory, cfg.FanoutConcurrency)
	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)

	if strings.TrimSpace(*userID) == "" {
		*userID = prompt(reader, "Usuario: ")
	}
	me, err := directory.ResolveUser(ctx, *userID)
	if err != nil {
		log.Fatalf("usuario %q: %v", *userID, err)
	}
	fmt.Printf("Conectado como %s (%s)\n", me.Name(), me.ID)

	for {
		total, _ := threads.TotalUnread(ctx, me.ID)
		pending, _ := notifications.UnreadCount(ctx, me.ID)
		fmt.Printf("\n===== Inbox (%d mensajes sin leer, %d avisos) =====\n", total, pending)
		fmt.Println("[L] Listar hilos  [N] Nuevo mensaje  [O] Abrir hilo  [A] Avisos  [T] Token  [Q] Salir")
		switch strings.ToUpper(prompt(reader, "> ")) {
		case "L":
			listThreads(ctx, threads, me.ID)
		case "N":
			to := strings.Split(prompt(reader, "Destinatarios (ids separados por coma): "), ",")
			body := prompt(reader, "Mensaje: ")
			res, err := threads.StartOrContinue(ctx, me.ID, to, domain.NewChatSentinel, body)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("enviado a %s (nuevo=%v)\n", res.Chat.ID, res.IsNewChat)
		case "O":
			openThread(ctx, reader, threads, me.ID, prompt(reader, "Chat id: "))
		case "A":
			showNotifications(ctx, reader, notifications, me.ID)
		case "T":
			token, err := jwtSvc.IssueAccessToken(me)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(token)
		case "Q":
			return
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func listThreads(ctx context.Context, threads *service.ThreadService, userID string) {
	list, err := threads.ListThreads(ctx, userID)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Println("No hay hilos.")
		return
	}
	for _, th := range list {
		preview := ""
		if th.LastMessage != nil {
			preview = fmt.Sprintf("%s: %s", th.LastMessage.SenderName, th.LastMessage.Body)
		}
		fmt.Printf("%s [%s] (%d) %s\n", th.Chat.ID, strings.Join(th.Chat.Participants, ", "), th.UnreadCount, preview)
	}
}

func openThread(ctx context.Context, reader *bufio.Reader, threads *service.ThreadService, userID, chatID string) {
	msgs, err := threads.FetchMessages(ctx, chatID, userID, 0)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, m := range msgs {
		marker := " "
		if m.UnseenBy(userID) {
			marker = "*"
		}
		fmt.Printf("%s %s %s: %s\n", marker, m.CreatedAt.Local().Format("02/01 15:04"), m.SenderID, m.Body)
	}
	if n, err := threads.MarkSeen(ctx, chatID, userID, nil); err == nil && n > 0 {
		fmt.Printf("(%d marcados como vistos)\n", n)
	}

	body := prompt(reader, "Responder (vacio para volver): ")
	if body == "" {
		return
	}
	if _, err := threads.Append(ctx, chatID, userID, body); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func showNotifications(ctx context.Context, reader *bufio.Reader, notifications *service.NotificationService, userID string) {
	items, err := notifications.List(ctx, userID, false)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(items) == 0 {
		fmt.Println("No hay avisos.")
		return
	}
	for i, n := range items {
		state := "  "
		if !n.Read {
			state = "* "
		}
		fmt.Printf("[%d] %s%s %s\n", i+1, state, n.Message, n.Link)
	}

	choice := strings.ToUpper(prompt(reader, "[n] marcar leido, [R] todos, [Dn] borrar, vacio para volver: "))
	switch {
	case choice == "":
		return
	case choice == "R":
		n, err := notifications.MarkAllRead(ctx, userID)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("%d marcados\n", n)
	case strings.HasPrefix(choice, "D"):
		if item, ok := pick(items, strings.TrimPrefix(choice, "D")); ok {
			if err := notifications.Delete(ctx, item.ID, userID); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	default:
		if item, ok := pick(items, choice); ok {
			if err := notifications.MarkRead(ctx, item.ID, userID); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

func pick(items []domain.Notification, raw string) (domain.Notification, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 1 || idx > len(items) {
		fmt.Println("Seleccion invalida.")
		return domain.Notification{}, false
	}
	return items[idx-1], true
}
