package chat

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zulandar/huebot/internal/api"
)

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrNotActive is returned when the session is not open.
	ErrNotActive = errors.New("chat: session is not active")
	// ErrBusy is returned while a previous message is still being handled.
	ErrBusy = errors.New("chat: a message is already in flight")
)

// Failure titles.
const (
	TitleSendFailed = "메시지 전송 실패"
	TitleAuth       = "인증 실패"
	TitleNetwork    = "네트워크 오류"
)

// Failure messages shown in the transcript.
const (
	MsgBadRequest = "요청이 올바르지 않습니다. 다시 시도해주세요."
	MsgAuth       = "로그인이 필요합니다. 다시 로그인해주세요."
	MsgNotFound   = "채팅 세션을 찾을 수 없습니다. 새로 시작해주세요."
	MsgServer     = "서버에 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgNetwork    = "서버에 연결할 수 없습니다. 네트워크 연결을 확인해주세요."
	MsgGeneric    = "죄송합니다. 일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
)

// FailureMessage maps a failed analyze call to the title and text shown to
// the user.
func FailureMessage(err error) (title, content string) {
	if api.IsNetworkError(err) {
		return TitleNetwork, MsgNetwork
	}
	switch status := api.StatusCode(err); status {
	case 0:
		return TitleSendFailed, MsgGeneric
	case http.StatusBadRequest:
		return TitleSendFailed, MsgBadRequest
	case http.StatusUnauthorized:
		return TitleAuth, MsgAuth
	case http.StatusNotFound:
		return TitleSendFailed, MsgNotFound
	case http.StatusInternalServerError:
		return TitleSendFailed, MsgServer
	default:
		return TitleSendFailed, fmt.Sprintf("서버 오류가 발생했습니다. (%d)", status)
	}
}
