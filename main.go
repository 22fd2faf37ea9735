package main

import (
	"fmt"

	"CreatorStudio-server/config"
	"CreatorStudio-server/models"
	"CreatorStudio-server/routers"
	"CreatorStudio-server/service"
)

func main() {
	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitQueue()
	fmt.Println("Queue initialized")

	service.InitMinIO()
	fmt.Println("MinIO initialized")

	service.InitServices()
	fmt.Println("Services initialized")

	processor := service.NewProcessor(service.Images)
	processor.StartProcessor()

	r := routers.InitRouter()
	r.Run(config.AppConfig.Server.Port)
}
