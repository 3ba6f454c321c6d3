package email

import (
	"fmt"
	"net/smtp"
)

// Service sends transactional mail over SMTP.
type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendPaymentReceipt sends the payment receipt for a settled order.
func (s *Service) SendPaymentReceipt(to, name, orderNumber, currency string, total int64, items []ReceiptItem) error {
	subject := fmt.Sprintf("Payment received — order %s", orderNumber)
	body := BuildPaymentReceiptBody(name, orderNumber, currency, total, items)
	return s.send(to, subject, body)
}

// SendEnrollmentConfirmation tells the student a course is now unlocked.
func (s *Service) SendEnrollmentConfirmation(to, courseTitle string) error {
	subject := fmt.Sprintf("You're enrolled: %s", courseTitle)
	body := BuildEnrollmentConfirmationBody(courseTitle)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
