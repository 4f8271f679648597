package router

import (
	"Agora_Community/internal/handler"
	"Agora_Community/internal/middleware"
	"Agora_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type Services struct {
	User       *service.UserService
	Community  *service.CommunityService
	Membership *service.MembershipService
	Voting     *service.VotingService
}

func InitRouter(svcs Services) *gin.Engine {
	r := gin.Default()

	user := handler.NewUserHandler(svcs.User)
	community := handler.NewCommunityHandler(svcs.Community)
	membership := handler.NewMembershipHandler(svcs.Membership)
	voting := handler.NewVotingHandler(svcs.Voting)

	admin := middleware.CommunityAdmin(svcs.Membership)

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
	}

	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	authGroup := r.Group("/api/auth")
	authGroup.Use(middleware.AuthMiddleware())
	{
		authGroup.POST("/logout", user.Logout)
		authGroup.POST("/change-password", user.ChangePassword)
	}

	// 社区与成员相关接口
	communityGroup := r.Group("/api/communities")
	communityGroup.Use(middleware.AuthMiddleware())
	{
		communityGroup.POST("", community.Create)
		communityGroup.GET("", community.List)
		communityGroup.GET("/:id", community.Get)
		communityGroup.PUT("/:id/config", community.UpdateConfig)

		communityGroup.POST("/:id/members/apply", membership.Apply)
		communityGroup.GET("/:id/members", membership.List)
		communityGroup.GET("/:id/members/count", membership.Count)
		communityGroup.GET("/:id/members/pending", admin, membership.Pending)
		communityGroup.GET("/:id/members/:memberId", membership.Status)
		communityGroup.PUT("/:id/members/:memberId/approve", admin, membership.Approve)
		communityGroup.PUT("/:id/members/:memberId/reject", admin, membership.Reject)
		communityGroup.DELETE("/:id/members/:memberId", admin, membership.Remove)
		communityGroup.PUT("/:id/members/:memberId/role", admin, membership.ChangeRole)
		communityGroup.PUT("/:id/members/:memberId/status", admin, membership.UpdateStatus)

		communityGroup.POST("/:id/questions", voting.CreateQuestion)
		communityGroup.GET("/:id/questions", voting.ListQuestions)
	}

	usersGroup := r.Group("/api/users")
	usersGroup.Use(middleware.AuthMiddleware())
	{
		usersGroup.GET("/me/memberships", membership.MyMemberships)
	}

	membershipGroup := r.Group("/api/memberships")
	membershipGroup.Use(middleware.AuthMiddleware())
	{
		membershipGroup.GET("/:id/history", membership.History)
	}

	// 投票相关接口
	questionGroup := r.Group("/api/questions")
	questionGroup.Use(middleware.AuthMiddleware())
	{
		questionGroup.POST("/:id/votes", voting.Vote)
		questionGroup.GET("/:id/results", voting.Results)
		questionGroup.PUT("/:id/close", voting.Close)
	}

	return r
}
