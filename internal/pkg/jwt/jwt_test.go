package jwt

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJWT(t *testing.T) {
	Convey("JWT 签发与验证", t, func() {
		j := NewJWT("test-secret", time.Hour)

		Convey("签发的Token可以验证并还原Claims", func() {
			token, err := j.GenerateToken("user-1", "alice")
			So(err, ShouldBeNil)
			So(token, ShouldNotBeEmpty)

			claims, err := j.ValidateToken(token)
			So(err, ShouldBeNil)
			So(claims.UserID, ShouldEqual, "user-1")
			So(claims.Username, ShouldEqual, "alice")
		})

		Convey("错误签名的Token被拒绝", func() {
			other := NewJWT("another-secret", time.Hour)
			token, err := other.GenerateToken("user-1", "alice")
			So(err, ShouldBeNil)

			_, err = j.ValidateToken(token)
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("过期的Token返回过期错误", func() {
			expired := NewJWT("test-secret", -time.Minute)
			token, err := expired.GenerateToken("user-1", "alice")
			So(err, ShouldBeNil)

			_, err = j.ValidateToken(token)
			So(err, ShouldEqual, ErrExpiredToken)
		})

		Convey("畸形Token被拒绝", func() {
			_, err := j.ValidateToken("not.a.jwt")
			So(err, ShouldEqual, ErrInvalidToken)
		})
	})
}

func TestGenerateRefreshToken(t *testing.T) {
	Convey("Refresh Token 生成", t, func() {
		a := GenerateRefreshToken()
		b := GenerateRefreshToken()

		So(len(a), ShouldEqual, 64) // 32字节hex编码
		So(a, ShouldNotEqual, b)
	})
}
