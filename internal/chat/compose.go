package chat

import (
	"fmt"
	"strings"

	"github.com/zulandar/huebot/internal/api"
)

// matchesReportKeyword reports whether text contains any keyword, ignoring case.
func matchesReportKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func greetingText(latest api.Diagnosis) string {
	return fmt.Sprintf(`안녕하세요! 퍼스널컬러 전문 AI 어시스턴트입니다.

최근 진단 결과가 "%s 타입"이시네요!

퍼스널컬러와 관련된 어떤 질문이든 자유롭게 물어보세요:
• 추천 색상 조합
• 메이크업 팁
• 스타일링 조언
• 계절별 코디 추천
• 브랜드별 제품 추천

어떤 도움이 필요하신가요?`, latest.DisplayName())
}

func summaryText(d api.Diagnosis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "지금까지의 대화를 바탕으로 진단 결과를 정리했어요.\n\n진단 결과: %s 타입\n", d.DisplayName())
	if d.DetailedAnalysis != "" {
		fmt.Fprintf(&b, "\n%s\n", d.DetailedAnalysis)
	} else if d.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Description)
	}
	writeList(&b, "추천 컬러", d.ColorPalette)
	writeList(&b, "스타일 키워드", d.StyleKeywords)
	writeList(&b, "메이크업 팁", d.MakeupTips)
	b.WriteString("\n진단 기록에 저장되었어요.")
	return b.String()
}

// fallbackSummaryText rebuilds a summary from the last assistant analysis
// when the diagnosis could not be saved.
func fallbackSummaryText(last *api.ChatAnalysis) string {
	var b strings.Builder
	b.WriteString("지금까지의 대화를 바탕으로 정리했어요.\n")
	if last != nil {
		tone := strings.TrimSpace(last.PrimaryTone + " " + last.SubTone)
		if tone != "" {
			fmt.Fprintf(&b, "\n예상 타입: %s\n", tone)
		}
		if last.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", last.Description)
		}
		writeList(&b, "추천", last.Recommendations)
	}
	b.WriteString("\n진단 기록 저장에는 실패했어요. 대화를 이어가시면 다시 정리해 드릴게요.")
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s: %s\n", label, strings.Join(items, ", "))
}

// Report branch replies.
const (
	MsgReportNeedMoreTurns = "리포트를 만들려면 대화가 조금 더 필요해요. 퍼스널컬러에 대해 몇 가지 더 이야기를 나눈 뒤 다시 요청해주세요."
	MsgReportInProgress    = "최근 진단 결과로 상세 리포트를 생성하고 있어요. 잠시만 기다려주세요."
	MsgReportUnavailable   = "아직 저장된 진단 결과가 없어 리포트를 만들 수 없어요. 대화를 조금 더 이어가시면 진단 결과를 먼저 정리해 드릴게요."
)

func reportOfferText(latest api.Diagnosis) string {
	return fmt.Sprintf("최근 진단 결과(%s 타입)의 상세 리포트는 진단 기록에서 바로 확인하실 수 있어요. 상세 보기를 열어 확인해 보세요.", latest.DisplayName())
}
