package boot

import (
	"ers/src/common"
	"ers/src/config"
	"ers/src/db"
	"ers/src/lib"
	"ers/src/models"
	"ers/src/types"
	"log"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	d := db.GetDb()

	err := d.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Event{},
		&models.TicketType{},
		&models.EventCustomField{},
		&models.Participant{},
		&models.ParticipantFieldResponse{},
		&models.Payment{},
		&models.Setting{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return d
}

func InitBroker() {
	if os.Getenv("KAFKA_BROKER") != "" {
		go lib.KafkaCreateTopics("participants-registered", "participants-checked-in")
	}
	common.SQSConsumers()
}

// InitScheduler registers the auto-close janitor. Effective status is
// already computed at read time; the job persists closure for events
// flagged auto_close so listings and exports see it too.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	_, err = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(CloseElapsedEvents),
	)
	if err != nil {
		log.Printf("Error registering auto-close job: %s\n", err.Error())
		return
	}
}

func CloseElapsedEvents() {
	var events []models.Event
	d := db.GetDb()
	if err := d.
		Model(&models.Event{}).
		Where(&models.Event{Status: types.EVENT_OPEN, AutoClose: true}).
		Find(&events).
		Error; err != nil {
		log.Printf("[janitor] Error listing open events: %s\n", err.Error())
		return
	}
	now := time.Now()
	for _, event := range events {
		start, err := event.StartTime()
		if err != nil {
			log.Printf("[janitor] Event %d has an unparsable schedule: %s\n", event.ID, err.Error())
			continue
		}
		if now.Before(start.Add(config.AUTO_CLOSE_AFTER)) {
			continue
		}
		if err := d.
			Model(&models.Event{}).
			Where("id = ?", event.ID).
			Update("status", types.EVENT_CLOSED).
			Error; err != nil {
			log.Printf("[janitor] Error closing event %d: %s\n", event.ID, err.Error())
			continue
		}
		log.Printf("[janitor] Event %d closed (started %s)\n", event.ID, start)
	}
}
