package api

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	nicknamePattern = regexp.MustCompile(`^[a-zA-Z0-9가-힣]+$`)
	emailPattern    = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
)

// passwordSpecials are the only non-alphanumeric characters the service accepts.
const passwordSpecials = "!\"#$%()*+,-./:;<=>?@[]^_`{|}~"

var forbiddenNicknameWords = []string{"운영자", "관리자", "admin"}

// ValidateSignup applies the service's signup rules locally and returns every
// violation joined into one error.
func ValidateSignup(req SignupRequest) error {
	var errs []error

	n := utf8.RuneCountInString(req.Nickname)
	switch {
	case n < 2 || n > 14:
		errs = append(errs, errors.New("닉네임은 2자 이상 14자 이하로 입력해주세요."))
	case strings.Contains(req.Nickname, " "):
		errs = append(errs, errors.New("닉네임에 공백이 있어 안됩니다."))
	case !nicknamePattern.MatchString(req.Nickname):
		errs = append(errs, errors.New("닉네임에는 한글, 영문, 숫자만 사용 가능합니다."))
	}
	lower := strings.ToLower(req.Nickname)
	for _, w := range forbiddenNicknameWords {
		if strings.Contains(lower, w) {
			errs = append(errs, errors.New("닉네임에 금지된 단어를 포함할 수 없습니다."))
			break
		}
	}

	if strings.TrimSpace(req.Username) == "" {
		errs = append(errs, errors.New("아이디를 입력해주세요."))
	}
	if !emailPattern.MatchString(req.Email) {
		errs = append(errs, errors.New("이메일 형식이 올바르지 않습니다."))
	}
	if req.Gender != "" && req.Gender != "남성" && req.Gender != "여성" {
		errs = append(errs, errors.New("성별은 남성 또는 여성만 선택할 수 있습니다."))
	}

	errs = append(errs, validatePassword(req.Password)...)
	if req.Password != req.PasswordConfirm {
		errs = append(errs, errors.New("비밀번호가 일치하지 않습니다."))
	}
	return errors.Join(errs...)
}

func validatePassword(pw string) []error {
	var errs []error
	if n := len(pw); n < 8 || n > 16 {
		errs = append(errs, errors.New("비밀번호는 8자 이상 16자 이하로 입력해주세요."))
	}

	var hasLetter, hasDigit, hasSpecial, hasInvalid bool
	for _, r := range pw {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		default:
			hasInvalid = true
		}
	}
	classes := 0
	for _, ok := range []bool{hasLetter, hasDigit, hasSpecial} {
		if ok {
			classes++
		}
	}
	if classes < 2 {
		errs = append(errs, errors.New("비밀번호는 영문, 숫자, 특수문자 중 2가지 이상을 조합해야 합니다."))
	}
	if hasInvalid {
		errs = append(errs, errors.New("비밀번호에 허용되지 않은 특수문자가 포함되어 있습니다."))
	}
	if hasRepeatedRun(pw, 4) {
		errs = append(errs, errors.New("비밀번호에 4자리 이상 동일한 문자를 연속으로 사용할 수 없습니다."))
	}
	return errs
}

// hasRepeatedRun reports whether s contains n identical word characters in a row.
func hasRepeatedRun(s string, n int) bool {
	run := 0
	var prev rune = -1
	for _, r := range s {
		isWord := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && r == prev {
			run++
		} else if isWord {
			run = 1
		} else {
			run = 0
		}
		prev = r
		if run >= n {
			return true
		}
	}
	return false
}
