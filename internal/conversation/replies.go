package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/healthgpt/clinic-assistant/internal/scheduling"
)

// Patient-facing messages, Brazilian Portuguese. Kept together so the whole
// voice of the assistant can be reviewed in one place.

func replyWelcome(clinicName, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá! Aqui é a assistente virtual da %s. 😊\n", clinicName)
	b.WriteString("Posso agendar uma consulta para você por aqui mesmo.\n")
	if link != "" {
		b.WriteString("Se preferir agendar por conta própria, é só pedir o link.\n")
	}
	b.WriteString("Vamos agendar sua consulta?")
	return b.String()
}

func replySchedulingLink(clinicName, link string) string {
	return fmt.Sprintf("Claro! Você pode agendar diretamente por este link: %s\nQualquer dúvida, estamos à disposição. Equipe %s", link, clinicName)
}

func replyAskType() string {
	return "Perfeito! A consulta será Particular ou por Convênio?"
}

func replyAskTypeAgain() string {
	return "Desculpe, não entendi. A consulta será Particular ou por Convênio?"
}

func replyPrivateHandoff(clinicName string) string {
	return "Entendido! Para atendimento particular, um membro da nossa equipe vai continuar a conversa com você em instantes. Obrigada! Equipe " + clinicName
}

func replyAskInsurer() string {
	return "Ótimo! Qual é o seu convênio?"
}

func replyInvalidInsurer(accepted []string) string {
	return fmt.Sprintf(
		"Infelizmente não atendemos esse convênio. Os convênios aceitos são: %s.\nA consulta será Particular ou por Convênio?",
		strings.Join(accepted, ", "))
}

func replyAskDocs(insurer string) string {
	return fmt.Sprintf(
		"Perfeito, atendemos %s! Por favor, envie uma foto da carteirinha do convênio e de um documento com foto para agilizar o atendimento.",
		insurer)
}

func replyAskPreference() string {
	return "Obrigada! Documentos recebidos. Você tem preferência de dia ou horário para a consulta?"
}

func replySlotList(slots []scheduling.Slot) string {
	var b strings.Builder
	b.WriteString("Estes são os horários disponíveis:\n")
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatSlotTime(slot.Start))
	}
	b.WriteString("Responda com o número do horário desejado.")
	return b.String()
}

func replySlotTaken(slots []scheduling.Slot) string {
	return "Esse horário acabou de ser preenchido. 😔\n" + replySlotList(slots)
}

func replyNoSlots() string {
	return "No momento não temos horários disponíveis. 😔 Assim que novos horários forem abertos, avisaremos por aqui."
}

func replyConfirmation(clinicName string, start time.Time) string {
	return fmt.Sprintf(
		"Sua consulta foi pré-agendada para %s. Em breve enviaremos a confirmação. Obrigada! Equipe %s",
		formatSlotTime(start), clinicName)
}

func replyEscalation(clinicName string) string {
	return "Vou transferir você para um membro da nossa equipe, que continuará o atendimento em instantes. Obrigada pela paciência! Equipe " + clinicName
}

func replyClarify() string {
	return "Desculpe, não consegui entender. Pode repetir, por favor?"
}

// formatSlotTime renders "dd/mm/aaaa às HH:MM".
func formatSlotTime(t time.Time) string {
	return t.Format("02/01/2006") + " às " + t.Format("15:04")
}
