package main

type Settings struct {
	Port         int      `env:"PORT,default=8000"`
	BasePath     string   `env:"BASE_PATH,default=/realtime"`
	JWTSecret    string   `env:"JWT_SECRET,required=true"`
	APIKeys      []string `env:"API_KEYS,required=true"`
	AllowedHosts []string `env:"ALLOWED_HOSTS"`
	MongoURI     string   `env:"MONGO_URI"`
	LogEncoding  string   `env:"LOG_ENCODING,default=console"`
}
