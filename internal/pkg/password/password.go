package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只处理前72字节，超长密码直接拒绝
var ErrPasswordTooLong = errors.New("密码过长")

// Hash 加密密码
func Hash(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 验证密码
func Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
