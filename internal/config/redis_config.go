package config

type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	UseRedis() bool
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:""`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
}

var _ RedisConfig = Redis{}

func (r Redis) GetRedisAddr() string {
	return r.Addr
}

func (r Redis) GetRedisPassword() string {
	return r.Password
}

func (r Redis) GetRedisDB() int {
	return r.DB
}

// UseRedis reports whether sessions go to Redis. Without an address the portal
// keeps sessions in process memory, which is only suitable for development.
func (r Redis) UseRedis() bool {
	return r.Addr != ""
}
