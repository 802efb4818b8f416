// Package services отправляет менторам письма о событиях жизненного цикла подписки.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// ErrUnknownEvent возвращается для события, для которого нет шаблона письма.
var ErrUnknownEvent = errors.New("unknown lifecycle event")

// MentorRepository находит получателя, если событие пришло без адреса.
type MentorRepository interface {
	GetMentor(ctx context.Context, mentorID string) (*models.Mentor, error)
}

// SenderService превращает события из очереди в письма.
type SenderService struct {
	mentors   MentorRepository
	transport smtp.Dialer
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(mentors MentorRepository, transport smtp.Dialer, log *slog.Logger) *SenderService {
	return &SenderService{
		mentors:   mentors,
		transport: transport,
		log:       log,
	}
}

// Handle обрабатывает одно сообщение очереди. Неизвестные события и удаленные
// менторы пропускаются без ошибки, чтобы сообщение не возвращалось в очередь бесконечно.
func (s *SenderService) Handle(ctx context.Context, body []byte) error {
	const op = "services.sender.Handle"

	var event models.LifecycleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return nil
	}
	log := s.log.With(slog.String("type", string(event.Type)), sl.Mentor(event.MentorID))

	subject, text, err := Render(event)
	if err != nil {
		log.Warn("skipping event", sl.Err(err))
		return nil
	}

	if event.Email == "" {
		mentor, err := s.mentors.GetMentor(ctx, event.MentorID)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("mentor not found, skipping event")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		event.Email = mentor.Email
		if event.Name == "" {
			event.Name = mentor.Name
			subject, text, _ = Render(event)
		}
	}

	if err := s.sendEmail([]string{event.Email}, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("notification sent")
	return nil
}

// Render возвращает тему и текст письма для события.
func Render(event models.LifecycleEvent) (string, string, error) {
	name := event.Name
	if name == "" {
		name = "ментор"
	}
	greeting := fmt.Sprintf("Здравствуйте, %s!\n\n", name)
	periodEnd := ""
	if event.PeriodEnd != nil {
		periodEnd = event.PeriodEnd.Format("02.01.2006")
	}

	switch event.Type {
	case models.EventTrialEnding:
		return "Пробный период RH Master заканчивается завтра",
			greeting + fmt.Sprintf("Пробный период тарифа %s заканчивается %s.\nВыберите тариф в настройках, чтобы не потерять доступ к клиентам.", event.Plan, periodEnd), nil
	case models.EventTrialExpired:
		return "Пробный период RH Master закончился",
			greeting + "Пробный период закончился. Оформите подписку в настройках, чтобы продолжить работу.", nil
	case models.EventSubscriptionActivated:
		return "Подписка RH Master оформлена",
			greeting + fmt.Sprintf("Подписка на тариф %s активна.", event.Plan), nil
	case models.EventSubscriptionUpdated:
		return "Тариф RH Master изменен",
			greeting + fmt.Sprintf("Ваш тариф изменен на %s.", event.Plan), nil
	case models.EventSubscriptionCancelSched:
		return "Отмена подписки RH Master запланирована",
			greeting + fmt.Sprintf("Подписка останется активной до %s и не будет продлена.\nВы можете возобновить ее в настройках до этой даты.", periodEnd), nil
	case models.EventSubscriptionReactivated:
		return "Подписка RH Master возобновлена",
			greeting + "Автопродление подписки снова включено.", nil
	case models.EventSubscriptionCanceled:
		return "Подписка RH Master отменена",
			greeting + "Подписка отменена. Вы можете оформить новую в любое время.", nil
	case models.EventInvoicePaid:
		return "Оплата RH Master получена",
			greeting + fmt.Sprintf("Оплачен счет на %s.", formatAmount(event.AmountDue, event.Currency)), nil
	case models.EventInvoicePaymentFailed:
		return "Не удалось списать оплату RH Master",
			greeting + fmt.Sprintf("Не удалось оплатить счет на %s. Обновите способ оплаты в настройках.", formatAmount(event.AmountDue, event.Currency)), nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.From(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.From()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.From()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}
	return nil
}
