package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/stopgame-client/internal/config"
	"github.com/rocketscienceinc/stopgame-client/internal/entity"
	"github.com/rocketscienceinc/stopgame-client/internal/gateway"
	"github.com/rocketscienceinc/stopgame-client/internal/repository"
	"github.com/rocketscienceinc/stopgame-client/internal/repository/storage"
	"github.com/rocketscienceinc/stopgame-client/internal/usecase"
	"github.com/rocketscienceinc/stopgame-client/transport/hub"
)

var ErrServerURLNotFound = errors.New("game server url is empty")

// RunApp - runs the headless client: connects to the game server, restores
// or establishes a room membership, and logs room activity until a signal
// arrives.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	if conf.Server.URL == "" {
		return ErrServerURLNotFound
	}

	sessionStorage := storage.NewFileStorage(conf.Session.Path)
	sessionRepo := repository.NewSessionRepository(sessionStorage)

	hubClient := hub.New(logger, hub.Options{
		URL:               conf.Server.URL,
		ReconnectAttempts: conf.Hub.MaxAttempts,
		ReconnectDelay:    conf.Hub.BaseDelay(),
	})

	if err := hubClient.Connect(ctx); err != nil {
		return fmt.Errorf("could not connect to game server: %w", err)
	}

	defer func() {
		if err := hubClient.Close(); err != nil {
			log.Error("could not close server connection", "error", err)
		}
	}()

	roomGateway := gateway.New(logger, hubClient)
	roomManager := usecase.NewRoomManager(logger, hubClient, roomGateway, sessionRepo, clockwork.NewRealClock())

	roomManager.Start()
	defer roomManager.Stop()

	offRoom := roomManager.SubscribeRoom(func(snapshot *entity.Room) {
		log.Info("room updated",
			"room", snapshot.Code,
			"phase", snapshot.Phase.String(),
			"players", len(snapshot.Players))
	})
	defer offRoom()

	offErrors := roomManager.OnError(func(message string) {
		log.Warn("server error", "message", message)
	})
	defer offErrors()

	offChat := roomManager.OnChat(func(message string) {
		log.Info("chat", "message", message)
	})
	defer offChat()

	offNotices := roomManager.OnNotice(func(message string) {
		log.Info("room notice", "message", message)
	})
	defer offNotices()

	if err := enterRoom(ctx, log, roomManager, conf); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Application context canceled, shutting down")

	return nil
}

// enterRoom - restore the stored membership when one exists; otherwise join
// or create a room from config. With neither, stay idle and just listen.
func enterRoom(ctx context.Context, log *slog.Logger, roomManager *usecase.RoomManager, conf *config.Config) error {
	session, err := roomManager.Session()
	if err == nil && session.RoomCode != "" {
		log.Info("Restoring room membership", "room", session.RoomCode)

		if err = roomManager.RejoinRoom(ctx); err != nil {
			return fmt.Errorf("could not rejoin room: %w", err)
		}

		return nil
	}

	if !errors.Is(err, repository.ErrSessionNotFound) && err != nil {
		return fmt.Errorf("could not load session: %w", err)
	}

	if conf.Player.Name == "" {
		log.Info("No player name configured, listening only")
		return nil
	}

	if conf.Player.RoomCode != "" {
		log.Info("Joining room", "room", conf.Player.RoomCode, "player", conf.Player.Name)

		if _, err = roomManager.JoinRoom(ctx, conf.Player.RoomCode, conf.Player.Name); err != nil {
			return fmt.Errorf("could not join room: %w", err)
		}

		return nil
	}

	log.Info("Creating room", "player", conf.Player.Name)

	room, err := roomManager.CreateRoom(ctx, conf.Player.Name, gateway.CreateRoomOptions{})
	if err != nil {
		return fmt.Errorf("could not create room: %w", err)
	}

	log.Info("Room created", "room", room.Code)

	return nil
}
